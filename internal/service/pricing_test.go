//go:build unit

package service

import (
	"go-moodle-catalog/internal/data"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func method(cost *float64, status *int64) *data.EnrolMethod {
	return &data.EnrolMethod{Cost: cost, DefaultStatusID: status}
}

func TestBestPrice(t *testing.T) {
	standard10 := method(ptr(10.0), ptr(int64(0)))
	promo5 := method(ptr(5.0), ptr(int64(1)))
	promoNoCost := method(nil, ptr(int64(1)))
	standard8 := method(ptr(8.0), ptr(int64(0)))

	t.Run("promotional wins once encountered", func(t *testing.T) {
		assert.Same(t, promo5, BestPrice([]*data.EnrolMethod{standard10, promo5}))
	})

	t.Run("promotional without cost is ignored", func(t *testing.T) {
		assert.Same(t, standard8, BestPrice([]*data.EnrolMethod{promoNoCost, standard8}))
	})

	t.Run("empty and all-null cost give nil", func(t *testing.T) {
		assert.Nil(t, BestPrice(nil))
		assert.Nil(t, BestPrice([]*data.EnrolMethod{}))
		assert.Nil(t, BestPrice([]*data.EnrolMethod{method(nil, nil), promoNoCost}))
	})

	t.Run("zero cost counts as no cost", func(t *testing.T) {
		assert.Nil(t, BestPrice([]*data.EnrolMethod{method(ptr(0.0), ptr(int64(1)))}))
	})

	t.Run("absent status is standard and first standard wins", func(t *testing.T) {
		first := method(ptr(30.0), nil)
		assert.Same(t, first, BestPrice([]*data.EnrolMethod{first, standard10}))
	})

	t.Run("first promotional in list order wins", func(t *testing.T) {
		expensive := method(ptr(50.0), ptr(int64(1)))
		assert.Same(t, expensive, BestPrice([]*data.EnrolMethod{expensive, promo5}))
	})

	t.Run("other status values are neither", func(t *testing.T) {
		assert.Nil(t, BestPrice([]*data.EnrolMethod{method(ptr(9.0), ptr(int64(2)))}))
	})
}

func TestPerInstallment(t *testing.T) {
	m := &data.EnrolMethod{Cost: ptr(299.70), Installments: ptr(int64(3))}
	assert.InDelta(t, 99.90, PerInstallment(m), 1e-9)

	assert.InDelta(t, 299.70, PerInstallment(&data.EnrolMethod{Cost: ptr(299.70)}), 1e-9)
	assert.InDelta(t, 299.70, PerInstallment(&data.EnrolMethod{Cost: ptr(299.70), Installments: ptr(int64(0))}), 1e-9)
	assert.Zero(t, PerInstallment(nil))
}

func TestPriceFormatter(t *testing.T) {
	f := defaultPricing.toSettings().Formatter()

	assert.Equal(t, "R$ 99,90", f.Amount(99.9))
	assert.Equal(t, "R$ 1234,50", f.Amount(1234.5), "no thousands separator")
	assert.Equal(t, "Em até R$ 99,90 de 3x", f.Format(99.9, 3))

	dot := PriceFormatter{DecimalSeparator: ".", CurrencySymbol: "US$", Message: "{installments}x {price}"}
	assert.Equal(t, "2x US$ 10.00", dot.Format(10, 2))
}

func TestPriceFormatter_View(t *testing.T) {
	f := defaultPricing.toSettings().Formatter()

	v := f.View(&data.EnrolMethod{Cost: ptr(299.70), Installments: ptr(int64(3)), DefaultStatusID: ptr(int64(1)), Currency: ptr("BRL")})
	require.NotNil(t, v)
	assert.True(t, v.Promotional)
	assert.Equal(t, "BRL", v.Currency)
	assert.Equal(t, "R$ 299,70", v.Amount)
	assert.Equal(t, "Em até R$ 99,90 de 3x", v.Text)

	single := f.View(&data.EnrolMethod{Cost: ptr(50.0)})
	require.NotNil(t, single)
	assert.Equal(t, int64(1), single.Installments)
	assert.Equal(t, "R$ 50,00", single.Text)

	assert.Nil(t, f.View(nil))
}
