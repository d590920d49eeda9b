package hashutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func baseFields() AgreementFields {
	return AgreementFields{
		TenantID:      7,
		LandlordID:    3,
		PropertyID:    11,
		UnitID:        42,
		StartDate:     time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2027, 9, 1, 0, 0, 0, 0, time.UTC),
		RentAmount:    120000,
		DepositAmount: 60000,
		Terms:         "No subletting.",
		Version:       1,
	}
}

func TestComputeAgreementHash(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := ComputeAgreementHash(baseFields())
		b := ComputeAgreementHash(baseFields())
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("Ignores Time Of Day", func(t *testing.T) {
		f := baseFields()
		f.StartDate = f.StartDate.Add(13 * time.Hour)
		assert.Equal(t, ComputeAgreementHash(baseFields()), ComputeAgreementHash(f))
	})

	t.Run("Sensitive To Every Economic Field", func(t *testing.T) {
		mutations := map[string]func(*AgreementFields){
			"tenant":    func(f *AgreementFields) { f.TenantID++ },
			"landlord":  func(f *AgreementFields) { f.LandlordID++ },
			"property":  func(f *AgreementFields) { f.PropertyID++ },
			"unit":      func(f *AgreementFields) { f.UnitID++ },
			"start":     func(f *AgreementFields) { f.StartDate = f.StartDate.AddDate(0, 0, 1) },
			"end":       func(f *AgreementFields) { f.EndDate = f.EndDate.AddDate(0, 0, 1) },
			"rent":      func(f *AgreementFields) { f.RentAmount++ },
			"deposit":   func(f *AgreementFields) { f.DepositAmount++ },
			"terms":     func(f *AgreementFields) { f.Terms += "x" },
			"version":   func(f *AgreementFields) { f.Version++ },
		}
		original := ComputeAgreementHash(baseFields())
		for name, mutate := range mutations {
			f := baseFields()
			mutate(&f)
			assert.NotEqual(t, original, ComputeAgreementHash(f), "field %s not covered by hash", name)
		}
	})

	t.Run("Empty Terms Is Stable", func(t *testing.T) {
		f := baseFields()
		f.Terms = ""
		assert.Equal(t, ComputeAgreementHash(f), ComputeAgreementHash(f))
	})
}

func TestCanonicalFieldOrder(t *testing.T) {
	// The canonical serialization is a cross-party contract; a reordering
	// would silently invalidate every stored hash.
	got := Canonical(baseFields())
	assert.Equal(t,
		"tenant_id=7|landlord_id=3|property_id=11|unit_id=42|"+
			"start_date=2026-09-01|end_date=2027-09-01|"+
			"rent_amount=120000|deposit_amount=60000|"+
			"terms=No subletting.|version=1",
		got)
}
