package admission

import "time"

// SupportingDocument is one uploaded file attached to an application.
type SupportingDocument struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	DocumentType  string    `json:"documentType"`
	StoredName    string    `json:"storedName"`
	OriginalName  string    `json:"originalName"`
	MimeType      string    `json:"mimeType"`
	SizeBytes     int64     `json:"sizeBytes"`
	UploadedAt    time.Time `json:"uploadedAt"`
}

// DocumentTypeDescriptor is one entry of the document type vocabulary.
type DocumentTypeDescriptor struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Document type codes.
const (
	DocBirthCertificate        = "BIRTH_CERTIFICATE"
	DocBaptismCertificate      = "BAPTISM_CERTIFICATE"
	DocSchoolReport            = "SCHOOL_REPORT"
	DocIDCopyMother            = "ID_COPY_MOTHER"
	DocIDCopyFather            = "ID_COPY_FATHER"
	DocProofOfResidence        = "PROOF_OF_RESIDENCE"
	DocImmunizationCertificate = "IMMUNIZATION_CERTIFICATE"
	DocSalarySlipMother        = "SALARY_SLIP_MOTHER"
	DocSalarySlipFather        = "SALARY_SLIP_FATHER"
	DocBankStatement           = "BANK_STATEMENT"
	DocTaxClearance            = "TAX_CLEARANCE"
	DocVisaDocument            = "VISA_DOCUMENT"
	DocOther                   = "OTHER"
)

var fallbackDocumentTypes = []DocumentTypeDescriptor{
	{Code: DocBirthCertificate, Label: "Birth Certificate"},
	{Code: DocBaptismCertificate, Label: "Baptism Certificate"},
	{Code: DocSchoolReport, Label: "School Report"},
	{Code: DocIDCopyMother, Label: "ID Copy - Mother"},
	{Code: DocIDCopyFather, Label: "ID Copy - Father"},
	{Code: DocProofOfResidence, Label: "Proof of Residence"},
	{Code: DocImmunizationCertificate, Label: "Immunization Certificate"},
	{Code: DocSalarySlipMother, Label: "Salary Slip - Mother"},
	{Code: DocSalarySlipFather, Label: "Salary Slip - Father"},
	{Code: DocBankStatement, Label: "Bank Statement"},
	{Code: DocTaxClearance, Label: "Tax Clearance"},
	{Code: DocVisaDocument, Label: "Visa Document"},
	{Code: DocOther, Label: "Other"},
}

// FallbackDocumentTypes returns a fresh copy of the built-in catalog used whenever the
// remote catalog cannot be loaded.
func FallbackDocumentTypes() []DocumentTypeDescriptor {
	out := make([]DocumentTypeDescriptor, len(fallbackDocumentTypes))
	copy(out, fallbackDocumentTypes)
	return out
}
