package models

// RecordFields holds the 28 therapy-session attributes of a device record.
// Column and JSON names keep the wire names already used by snapshot consumers.
type RecordFields struct {
	SerialNumber  string `json:"string_serial_number" db:"string_serial_number"`
	ReportUID     string `json:"report_uniq_id_uid" db:"report_uniq_id_uid"`
	DeviceUserID  string `json:"device_user_id" db:"device_user_id"`
	DeviceReading string `json:"device_reading" db:"device_reading"`

	// Dates are DD/MM/YYYY, times HH:MM
	StartDate string `json:"start_date" db:"start_date"`
	EndDate   string `json:"end_date" db:"end_date"`
	Mask      string `json:"mask" db:"mask"`
	MaskType  string `json:"mask_type" db:"mask_type"`
	StartTime string `json:"start_hour_min" db:"start_hour_min"`
	EndTime   string `json:"end_hour_min" db:"end_hour_min"`

	TimeDifferenceMinutes string `json:"timedifferenceinMinute" db:"timedifferenceinMinute"`
	ReadingDeviceMode     string `json:"reading_dev_mode" db:"reading_dev_mode"`
	ModeName              string `json:"mode_name" db:"mode_name"`
	DeviceName            string `json:"device_name" db:"device_name"`

	// Event counts
	CSACount string `json:"csa_count" db:"csa_count"`
	OSACount string `json:"osa_count" db:"osa_count"`
	HSACount string `json:"hsa_count" db:"hsa_count"`

	AFlex               string `json:"a_flex" db:"a_flex"`
	AFlexLevel          string `json:"a_flex_level" db:"a_flex_level"`
	AFlexValue          string `json:"a_flex_value" db:"a_flex_value"`
	Leak                string `json:"leak" db:"leak"`
	MaxPressure         string `json:"max_pressure" db:"max_pressure"`
	MinPressure         string `json:"min_pressure" db:"min_pressure"`
	PressureChangeCount string `json:"pressurechangecount" db:"pressurechangecount"`
	RateChangeFactor    string `json:"ratechangeFactor" db:"ratechangeFactor"`

	FinalDate string `json:"final_date" db:"final_date"` // DD/MM/YYYY
	DateTime  string `json:"date_time" db:"date_time"`   // DD/MM/YYYY HH:MM
	OldOrNew  string `json:"old_or_new" db:"old_or_new"`
}

// DeviceRecord is a persisted therapy-session record.
type DeviceRecord struct {
	ID string `json:"id" db:"id"`
	RecordFields
}

// Field names in canonical column order. Index 0 of a table row is the id,
// so FieldNames[i] is column i+1.
const (
	FieldSerialNumber          = "string_serial_number"
	FieldReportUID             = "report_uniq_id_uid"
	FieldDeviceUserID          = "device_user_id"
	FieldDeviceReading         = "device_reading"
	FieldStartDate             = "start_date"
	FieldEndDate               = "end_date"
	FieldMask                  = "mask"
	FieldMaskType              = "mask_type"
	FieldStartTime             = "start_hour_min"
	FieldEndTime               = "end_hour_min"
	FieldTimeDifferenceMinutes = "timedifferenceinMinute"
	FieldReadingDeviceMode     = "reading_dev_mode"
	FieldModeName              = "mode_name"
	FieldDeviceName            = "device_name"
	FieldCSACount              = "csa_count"
	FieldOSACount              = "osa_count"
	FieldHSACount              = "hsa_count"
	FieldAFlex                 = "a_flex"
	FieldAFlexLevel            = "a_flex_level"
	FieldAFlexValue            = "a_flex_value"
	FieldLeak                  = "leak"
	FieldMaxPressure           = "max_pressure"
	FieldMinPressure           = "min_pressure"
	FieldPressureChangeCount   = "pressurechangecount"
	FieldRateChangeFactor      = "ratechangeFactor"
	FieldFinalDate             = "final_date"
	FieldDateTime              = "date_time"
	FieldOldOrNew              = "old_or_new"
)

var FieldNames = []string{
	FieldSerialNumber, FieldReportUID, FieldDeviceUserID, FieldDeviceReading,
	FieldStartDate, FieldEndDate, FieldMask, FieldMaskType, FieldStartTime, FieldEndTime,
	FieldTimeDifferenceMinutes, FieldReadingDeviceMode, FieldModeName, FieldDeviceName,
	FieldCSACount, FieldOSACount, FieldHSACount, FieldAFlex, FieldAFlexLevel, FieldAFlexValue,
	FieldLeak, FieldMaxPressure, FieldMinPressure, FieldPressureChangeCount, FieldRateChangeFactor,
	FieldFinalDate, FieldDateTime, FieldOldOrNew,
}

// NumericFields accept either a JSON string or a JSON number on the HTTP boundary.
var NumericFields = map[string]bool{
	FieldTimeDifferenceMinutes: true,
	FieldCSACount:              true,
	FieldOSACount:              true,
	FieldHSACount:              true,
	FieldAFlexLevel:            true,
	FieldAFlexValue:            true,
	FieldLeak:                  true,
	FieldMaxPressure:           true,
	FieldMinPressure:           true,
	FieldPressureChangeCount:   true,
	FieldRateChangeFactor:      true,
}

var fieldIndex = func() map[string]int {
	m := make(map[string]int, len(FieldNames))
	for i, name := range FieldNames {
		m[name] = i
	}
	return m
}()

// FieldIndex returns the column index (1-based, 0 is the id) of a field name.
func FieldIndex(name string) (int, bool) {
	i, ok := fieldIndex[name]
	if !ok {
		return 0, false
	}
	return i + 1, true
}

// IsField reports whether name is one of the 28 record fields.
func IsField(name string) bool {
	_, ok := fieldIndex[name]
	return ok
}

// pointers returns the field addresses in canonical order.
func (f *RecordFields) pointers() []*string {
	return []*string{
		&f.SerialNumber, &f.ReportUID, &f.DeviceUserID, &f.DeviceReading,
		&f.StartDate, &f.EndDate, &f.Mask, &f.MaskType, &f.StartTime, &f.EndTime,
		&f.TimeDifferenceMinutes, &f.ReadingDeviceMode, &f.ModeName, &f.DeviceName,
		&f.CSACount, &f.OSACount, &f.HSACount, &f.AFlex, &f.AFlexLevel, &f.AFlexValue,
		&f.Leak, &f.MaxPressure, &f.MinPressure, &f.PressureChangeCount, &f.RateChangeFactor,
		&f.FinalDate, &f.DateTime, &f.OldOrNew,
	}
}

// Get returns the value of the named field, or "" for unknown names.
func (f *RecordFields) Get(name string) string {
	i, ok := fieldIndex[name]
	if !ok {
		return ""
	}
	return *f.pointers()[i]
}

// Set assigns the named field. It returns false for unknown names.
func (f *RecordFields) Set(name, value string) bool {
	i, ok := fieldIndex[name]
	if !ok {
		return false
	}
	*f.pointers()[i] = value
	return true
}

// Values returns the 28 field values in canonical order.
func (f *RecordFields) Values() []string {
	ptrs := f.pointers()
	values := make([]string, len(ptrs))
	for i, p := range ptrs {
		values[i] = *p
	}
	return values
}

// EffectiveDate is the date used to order a record: start_date, else final_date.
func (f *RecordFields) EffectiveDate() string {
	if f.StartDate != "" {
		return f.StartDate
	}
	return f.FinalDate
}
