// Package export encodes portability bundles and issues signed export
// receipts.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"werkstattguard/internal/gdpr/models"
	dErrors "werkstattguard/pkg/domain-errors"
)

// ContentType returns the MIME type for a format.
func ContentType(format models.ExportFormat) string {
	switch format {
	case models.FormatCSV:
		return "text/csv"
	case models.FormatXML:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Encode serializes an export package in the requested format.
func Encode(pkg *models.ExportPackage, format models.ExportFormat) ([]byte, error) {
	switch format {
	case models.FormatJSON:
		return encodeJSON(pkg)
	case models.FormatCSV:
		return encodeCSV(pkg)
	case models.FormatXML:
		return encodeXML(pkg)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func encodeJSON(pkg *models.ExportPackage) ([]byte, error) {
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export as json: %w", err)
	}
	return data, nil
}

// encodeCSV flattens the package into category-tagged rows so the whole
// export fits one spreadsheet.
func encodeCSV(pkg *models.ExportPackage) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := [][]string{{"category", "field", "value"}}
	if pkg.Profile != nil {
		rows = append(rows,
			[]string{"profile", "id", pkg.Profile.ID},
			[]string{"profile", "email", pkg.Profile.Email},
			[]string{"profile", "name", pkg.Profile.Name},
			[]string{"profile", "phone", pkg.Profile.Phone},
			[]string{"profile", "address", pkg.Profile.Address},
			[]string{"profile", "created_at", pkg.Profile.CreatedAt.Format(time.RFC3339)},
		)
	}
	for _, c := range pkg.Consents {
		rows = append(rows, []string{"consent", string(c.Type), strconv.FormatBool(c.Granted)})
	}
	for _, s := range pkg.Sessions {
		rows = append(rows, []string{"session", s.ID, s.CreatedAt.Format(time.RFC3339)})
	}
	for _, r := range pkg.WorkshopData {
		for field, value := range r.Fields {
			rows = append(rows, []string{"workshop_data:" + r.ID, field, fmt.Sprint(value)})
		}
	}
	for _, e := range pkg.AuditTrail {
		rows = append(rows, []string{"audit", e.EventType, e.Timestamp.Format(time.RFC3339)})
	}
	for _, c := range pkg.Communications {
		rows = append(rows, []string{"communication", c.Channel, c.Subject})
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode export as csv: %w", err)
	}
	return buf.Bytes(), nil
}

// xmlPackage mirrors ExportPackage with xml element names; workshop field
// maps need explicit flattening because encoding/xml cannot marshal maps.
type xmlPackage struct {
	XMLName        xml.Name                    `xml:"export"`
	UserID         string                      `xml:"user_id"`
	GeneratedAt    time.Time                   `xml:"generated_at"`
	Profile        *models.User                `xml:"profile,omitempty"`
	Consents       []xmlConsent                `xml:"consents>consent"`
	Sessions       []models.Session            `xml:"sessions>session"`
	WorkshopData   []xmlWorkshopRecord         `xml:"workshop_data>record"`
	AuditTrail     []models.AuditTrailEntry    `xml:"audit_trail>event"`
	Communications []models.CommunicationEntry `xml:"communications>message"`
}

// xmlConsent drops the metadata map, which encoding/xml cannot marshal.
type xmlConsent struct {
	Type        string     `xml:"type,attr"`
	Granted     bool       `xml:"granted"`
	GrantedAt   *time.Time `xml:"granted_at,omitempty"`
	WithdrawnAt *time.Time `xml:"withdrawn_at,omitempty"`
	LegalBasis  string     `xml:"legal_basis,omitempty"`
	Purpose     string     `xml:"purpose,omitempty"`
}

type xmlWorkshopRecord struct {
	ID     string     `xml:"id,attr"`
	Fields []xmlField `xml:"field"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

func encodeXML(pkg *models.ExportPackage) ([]byte, error) {
	x := xmlPackage{
		UserID:         pkg.UserID,
		GeneratedAt:    pkg.GeneratedAt,
		Profile:        pkg.Profile,
		Sessions:       pkg.Sessions,
		AuditTrail:     pkg.AuditTrail,
		Communications: pkg.Communications,
	}
	for _, c := range pkg.Consents {
		x.Consents = append(x.Consents, xmlConsent{
			Type:        string(c.Type),
			Granted:     c.Granted,
			GrantedAt:   c.GrantedAt,
			WithdrawnAt: c.WithdrawnAt,
			LegalBasis:  c.LegalBasis,
			Purpose:     c.Purpose,
		})
	}
	for _, r := range pkg.WorkshopData {
		rec := xmlWorkshopRecord{ID: r.ID}
		for field, value := range r.Fields {
			rec.Fields = append(rec.Fields, xmlField{Name: field, Value: fmt.Sprint(value)})
		}
		x.WorkshopData = append(x.WorkshopData, rec)
	}

	data, err := xml.MarshalIndent(x, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export as xml: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
