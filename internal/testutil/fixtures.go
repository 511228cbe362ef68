package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kamikazebr/therapy-records/pkg/models"
)

// SampleFields returns a fully populated, valid set of record fields.
func SampleFields(startDate string) models.RecordFields {
	return models.RecordFields{
		SerialNumber:          "SN-" + uuid.New().String()[:8],
		ReportUID:             "RPT-001",
		DeviceUserID:          "user-1",
		DeviceReading:         "reading",
		StartDate:             startDate,
		EndDate:               startDate,
		Mask:                  "nasal",
		MaskType:              "M",
		StartTime:             "22:00",
		EndTime:               "06:30",
		TimeDifferenceMinutes: "510",
		ReadingDeviceMode:     "auto",
		ModeName:              "APAP",
		DeviceName:            "DeckMount",
		CSACount:              "2",
		OSACount:              "5",
		HSACount:              "1",
		AFlex:                 "on",
		AFlexLevel:            "2",
		AFlexValue:            "1.5",
		Leak:                  "12",
		MaxPressure:           "14.5",
		MinPressure:           "6",
		PressureChangeCount:   "31",
		RateChangeFactor:      "0.8",
		FinalDate:             startDate,
		DateTime:              startDate + " 22:00",
		OldOrNew:              "new",
	}
}

// CreateTestRecord inserts a record directly, bypassing validation.
func (tdb *TestDB) CreateTestRecord(ctx context.Context, fields models.RecordFields) *models.DeviceRecord {
	tdb.t.Helper()

	record := &models.DeviceRecord{ID: uuid.New().String(), RecordFields: fields}
	if err := tdb.Repositories().Records.Create(ctx, record); err != nil {
		tdb.t.Fatalf("Failed to create test record: %v", err)
	}
	return record
}

// CreateTestAccount inserts an account with a plain-text secret.
func (tdb *TestDB) CreateTestAccount(ctx context.Context, serial, secret string) *models.Account {
	tdb.t.Helper()

	account := &models.Account{
		SerialNumber:     serial,
		ModelNumber:      "MDL-100",
		DeviceType:       models.DeviceTypeCPAP,
		ContactNumber:    "9876543210",
		CredentialSecret: secret,
		RegisteredAt:     time.Now().UTC().Truncate(time.Second),
	}
	if err := tdb.Repositories().Accounts.Create(ctx, account); err != nil {
		tdb.t.Fatalf("Failed to create test account: %v", err)
	}
	return account
}

// GenerateTestSerial generates a unique device serial number
func GenerateTestSerial() string {
	return fmt.Sprintf("SN-%s", uuid.New().String()[:8])
}
