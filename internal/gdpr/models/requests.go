package models

// RecordConsentRequest captures a consent grant or withdrawal.
type RecordConsentRequest struct {
	UserID     string         `json:"user_id" validate:"required,max=64"`
	Type       ConsentType    `json:"consent_type" validate:"required"`
	Granted    bool           `json:"granted"`
	IPAddress  string         `json:"ip_address,omitempty" validate:"omitempty,ip"`
	UserAgent  string         `json:"user_agent,omitempty" validate:"max=512"`
	Version    string         `json:"version,omitempty" validate:"max=32"`
	LegalBasis string         `json:"legal_basis,omitempty" validate:"max=128"`
	Purpose    string         `json:"purpose,omitempty" validate:"max=256"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AccessRequest is an Article 15 data access request.
type AccessRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Email  string `json:"email" validate:"required,email,max=255"`
}

// ErasureRequest is an Article 17 right-to-be-forgotten request.
type ErasureRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Email  string `json:"email" validate:"required,email,max=255"`
	Reason string `json:"reason,omitempty" validate:"max=1024"`
}

// PortabilityRequest is an Article 20 export request.
type PortabilityRequest struct {
	UserID string       `json:"user_id" validate:"required,max=64"`
	Format ExportFormat `json:"format" validate:"required,oneof=json csv xml"`
}

// ObjectionRequest is an Article 21 objection to one or more processing
// types.
type ObjectionRequest struct {
	UserID string   `json:"user_id" validate:"required,max=64"`
	Types  []string `json:"types" validate:"required,min=1,dive,required,max=64"`
	Reason string   `json:"reason,omitempty" validate:"max=1024"`
}
