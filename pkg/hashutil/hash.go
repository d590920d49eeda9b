// Package hashutil computes the canonical content hash of a tenancy
// agreement's economic terms. Both parties acknowledge this hash when they
// sign, so it has to be byte-for-byte reproducible anywhere: the fields are
// serialized in a fixed, explicit sequence, never from a runtime map whose
// iteration order is unspecified.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// AgreementFields is the fixed set of economic terms covered by the hash.
// Anything outside this set can change without invalidating signatures.
type AgreementFields struct {
	TenantID      uint
	LandlordID    uint
	PropertyID    uint
	UnitID        uint
	StartDate     time.Time
	EndDate       time.Time
	RentAmount    int64
	DepositAmount int64
	Terms         string
	Version       int
}

// dateLayout pins dates to calendar days; wall-clock precision would make
// the hash depend on how the timestamp was stored.
const dateLayout = "2006-01-02"

// Canonical returns the canonical serialization the hash is computed over.
// The field sequence is part of the contract between signing parties and
// must not be reordered.
func Canonical(f AgreementFields) string {
	pairs := []string{
		fmt.Sprintf("tenant_id=%d", f.TenantID),
		fmt.Sprintf("landlord_id=%d", f.LandlordID),
		fmt.Sprintf("property_id=%d", f.PropertyID),
		fmt.Sprintf("unit_id=%d", f.UnitID),
		fmt.Sprintf("start_date=%s", f.StartDate.UTC().Format(dateLayout)),
		fmt.Sprintf("end_date=%s", f.EndDate.UTC().Format(dateLayout)),
		fmt.Sprintf("rent_amount=%d", f.RentAmount),
		fmt.Sprintf("deposit_amount=%d", f.DepositAmount),
		fmt.Sprintf("terms=%s", f.Terms),
		fmt.Sprintf("version=%d", f.Version),
	}
	return strings.Join(pairs, "|")
}

// ComputeAgreementHash returns the hex SHA-256 digest of the canonical
// serialization. Pure function: same fields, same hash, on any platform.
func ComputeAgreementHash(f AgreementFields) string {
	sum := sha256.Sum256([]byte(Canonical(f)))
	return hex.EncodeToString(sum[:])
}
