package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Fines travel as JSON numbers, the way the web client sends them.
	decimal.MarshalJSONWithoutQuotes = true
}

// ViolationType enum
type ViolationType string

const (
	ViolationHelmet       ViolationType = "HELMET_VIOLATION"
	ViolationPlateTamper  ViolationType = "PLATE_TAMPERING"
	ViolationSpeeding     ViolationType = "SPEEDING"
	ViolationWrongParking ViolationType = "WRONG_PARKING"
	ViolationOther        ViolationType = "OTHER"
)

// violationTypeCodes is the on-chain / legacy numeric ordering of ViolationType.
var violationTypeCodes = []ViolationType{
	ViolationHelmet,
	ViolationPlateTamper,
	ViolationSpeeding,
	ViolationWrongParking,
	ViolationOther,
}

// ViolationTypes returns every known violation type in code order.
func ViolationTypes() []ViolationType {
	out := make([]ViolationType, len(violationTypeCodes))
	copy(out, violationTypeCodes)
	return out
}

// Valid reports whether t is a known violation type.
func (t ViolationType) Valid() bool {
	_, ok := t.Code()
	return ok
}

// Code returns the numeric code used by the contract and the legacy API.
func (t ViolationType) Code() (uint8, bool) {
	for i, known := range violationTypeCodes {
		if known == t {
			return uint8(i), true
		}
	}
	return 0, false
}

// ViolationTypeFromCode maps a numeric code back to its type.
func ViolationTypeFromCode(code int) (ViolationType, error) {
	if code < 0 || code >= len(violationTypeCodes) {
		return "", fmt.Errorf("unknown violation type code %d", code)
	}
	return violationTypeCodes[code], nil
}

// ParseViolationType accepts a type name (any case) or its numeric code.
func ParseViolationType(s string) (ViolationType, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return ViolationTypeFromCode(n)
	}
	t := ViolationType(strings.ToUpper(s))
	if !t.Valid() {
		return "", fmt.Errorf("unknown violation type %q", s)
	}
	return t, nil
}

// UnmarshalJSON accepts either `"SPEEDING"` or `2`. null leaves t untouched
// and "" decodes to the zero value, so records without a type still round-trip.
func (t *ViolationType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*t = ""
			return nil
		}
		parsed, err := ParseViolationType(s)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("violation type must be a name or a code: %w", err)
	}
	parsed, err := ViolationTypeFromCode(code)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ViolationStatus enum
type ViolationStatus string

const (
	ViolationPending  ViolationStatus = "PENDING"
	ViolationApproved ViolationStatus = "APPROVED"
	ViolationRejected ViolationStatus = "REJECTED"
)

var violationStatusCodes = []ViolationStatus{
	ViolationPending,
	ViolationApproved,
	ViolationRejected,
}

// ParseViolationStatus is case-insensitive; the web client sends lowercase.
func ParseViolationStatus(s string) (ViolationStatus, error) {
	st := ViolationStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range violationStatusCodes {
		if known == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown violation status %q", s)
}

// ViolationStatusFromCode maps the contract's status code to a status.
func ViolationStatusFromCode(code uint8) (ViolationStatus, error) {
	if int(code) >= len(violationStatusCodes) {
		return "", fmt.Errorf("unknown violation status code %d", code)
	}
	return violationStatusCodes[code], nil
}

// Code returns the contract's numeric status.
func (s ViolationStatus) Code() (uint8, bool) {
	for i, known := range violationStatusCodes {
		if known == s {
			return uint8(i), true
		}
	}
	return 0, false
}

// Terminal reports whether no further review is possible.
func (s ViolationStatus) Terminal() bool {
	return s == ViolationApproved || s == ViolationRejected
}

// RiskLevel enum
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Source identifies which store a record was read from.
type Source string

const (
	SourceBackend Source = "backend"
	SourceChain   Source = "chain"
)

// AIAnalysis is attached once at submission and never recomputed.
type AIAnalysis struct {
	Confidence        float64   `json:"confidence"`
	DetectedViolation string    `json:"detectedViolation"`
	VehicleDetected   bool      `json:"vehicleDetected"`
	RiskLevel         RiskLevel `json:"riskLevel"`
	Notes             string    `json:"additionalNotes,omitempty"`
	Timestamp         time.Time `json:"analysisTimestamp"`
}

// Value stores the analysis as a JSON column.
func (a AIAnalysis) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan reads the JSON column back.
func (a *AIAnalysis) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*a = AIAnalysis{}
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported ai_analysis column type %T", value)
	}
}

// DefaultLocation is recorded when a report carries no location.
const DefaultLocation = "Location not specified"

// Violation model
type Violation struct {
	ID               int64           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Reporter         string          `gorm:"column:reporter;index" json:"reporter"`
	VehicleID        int64           `gorm:"column:vehicle_id;index" json:"vehicleId"`
	ViolationType    ViolationType   `gorm:"column:violation_type;index" json:"violationType"`
	Description      string          `gorm:"column:description" json:"description"`
	Location         string          `gorm:"column:location" json:"location"`
	EvidenceURL      string          `gorm:"column:evidence_url" json:"evidenceUrl"`
	BlockchainTxHash string          `gorm:"column:blockchain_tx_hash" json:"blockchainTxHash,omitempty"`
	AIAnalysis       *AIAnalysis     `gorm:"type:text;column:ai_analysis" json:"aiAnalysis,omitempty"`
	Status           ViolationStatus `gorm:"column:status;default:PENDING;index" json:"status"`

	Reviewer        *string    `gorm:"column:reviewer" json:"reviewer"`
	ReviewTimestamp *time.Time `gorm:"column:review_timestamp" json:"reviewTimestamp"`
	ReviewNotes     string     `gorm:"column:review_notes" json:"reviewNotes"`

	FineAmount decimal.Decimal `gorm:"type:numeric;column:fine_amount" json:"fineAmount"`
	IsPaid     bool            `gorm:"column:is_paid;default:false" json:"isPaid"`

	SubmittedAt time.Time `gorm:"column:submitted_at;index" json:"submittedAt"`

	Source Source `gorm:"-" json:"source,omitempty"`
}

func (Violation) TableName() string {
	return "violations"
}

// Vehicle model - a registered vehicle. Chassis and engine numbers are only kept hashed.
type Vehicle struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PlateNumber        string `gorm:"column:plate_number;index" json:"plateNumber"`
	HashedPlateNumber  string `gorm:"column:hashed_plate_number" json:"hashedPlateNumber"`
	HashedChassisID    string `gorm:"column:hashed_chassis_id" json:"hashedChassisId,omitempty"`
	HashedEngineNumber string `gorm:"column:hashed_engine_number" json:"hashedEngineNumber,omitempty"`

	OwnerName    string `gorm:"column:owner_name" json:"ownerName"`
	OwnerAddress string `gorm:"column:owner_address;index" json:"ownerAddress"`
	VehicleType  string `gorm:"column:vehicle_type" json:"vehicleType"`
	Model        string `gorm:"column:model" json:"model"`
	Year         int    `gorm:"column:year" json:"year"`

	RegistrationDate time.Time `gorm:"column:registration_date" json:"registrationDate"`
	IsActive         bool      `gorm:"column:is_active;default:true" json:"isActive"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
