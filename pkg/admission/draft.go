package admission

// Field keys used in StageErrors. They match the JSON names of ApplicationDraft.
const (
	FieldSurname       = "surname"
	FieldLearnerName   = "learnerName"
	FieldDateOfBirth   = "dateOfBirth"
	FieldPlaceOfBirth  = "placeOfBirth"
	FieldGradeApplying = "gradeApplying"
	FieldYear          = "year"
	FieldHasRepeated   = "hasRepeated"
	FieldRepeatedGrade = "repeatedGrade"

	FieldMotherName         = "motherName"
	FieldMotherCell         = "motherCell"
	FieldMotherAddress      = "motherAddress"
	FieldFatherName         = "fatherName"
	FieldFatherCell         = "fatherCell"
	FieldFatherAddress      = "fatherAddress"
	FieldResponsibleName    = "responsibleName"
	FieldResponsibleCell    = "responsibleCell"
	FieldResponsibleAddress = "responsibleAddress"

	FieldCurrentSchoolTel     = "currentSchoolTel"
	FieldCurrentSchoolContact = "currentSchoolContact"

	FieldPaymentMethod  = "paymentMethod"
	FieldConsentTerms   = "consentTerms"
	FieldConsentPrivacy = "consentPrivacy"
)

// ApplicationDraft is the flat admission form snapshot. Every field is a string or a bool.
type ApplicationDraft struct {
	// Learner
	Surname           string `json:"surname"`
	LearnerName       string `json:"learnerName"`
	PreferredName     string `json:"preferredName"`
	DateOfBirth       string `json:"dateOfBirth"`
	PlaceOfBirth      string `json:"placeOfBirth"`
	Gender            string `json:"gender"`
	IDNumber          string `json:"idNumber"`
	Nationality       string `json:"nationality"`
	HomeLanguage      string `json:"homeLanguage"`
	GradeApplying     string `json:"gradeApplying"`
	Year              string `json:"year"`
	HasRepeated       bool   `json:"hasRepeated"`
	RepeatedGrade     string `json:"repeatedGrade"`
	MedicalConditions string `json:"medicalConditions"`

	// Mother
	MotherName     string `json:"motherName"`
	MotherIDNumber string `json:"motherIdNumber"`
	MotherCell     string `json:"motherCell"`
	MotherEmail    string `json:"motherEmail"`
	MotherWorkTel  string `json:"motherWorkTel"`
	MotherAddress  string `json:"motherAddress"`

	// Father
	FatherName     string `json:"fatherName"`
	FatherIDNumber string `json:"fatherIdNumber"`
	FatherCell     string `json:"fatherCell"`
	FatherEmail    string `json:"fatherEmail"`
	FatherWorkTel  string `json:"fatherWorkTel"`
	FatherAddress  string `json:"fatherAddress"`

	// Responsible party (when neither parent is the account holder)
	ResponsibleName         string `json:"responsibleName"`
	ResponsibleRelationship string `json:"responsibleRelationship"`
	ResponsibleCell         string `json:"responsibleCell"`
	ResponsibleEmail        string `json:"responsibleEmail"`
	ResponsibleAddress      string `json:"responsibleAddress"`

	// Learner address
	LearnerStreet     string `json:"learnerStreet"`
	LearnerSuburb     string `json:"learnerSuburb"`
	LearnerCity       string `json:"learnerCity"`
	LearnerPostalCode string `json:"learnerPostalCode"`

	// Religious
	Denomination   string `json:"denomination"`
	Parish         string `json:"parish"`
	Baptised       bool   `json:"baptised"`
	FirstCommunion bool   `json:"firstCommunion"`
	Confirmation   bool   `json:"confirmation"`

	// Family
	MaritalStatus    string `json:"maritalStatus"`
	LivesWith        string `json:"livesWith"`
	SiblingsAtSchool bool   `json:"siblingsAtSchool"`
	SiblingNames     string `json:"siblingNames"`

	// Employment
	MotherEmployer         string `json:"motherEmployer"`
	MotherOccupation       string `json:"motherOccupation"`
	MotherWorkAddress      string `json:"motherWorkAddress"`
	FatherEmployer         string `json:"fatherEmployer"`
	FatherOccupation       string `json:"fatherOccupation"`
	FatherWorkAddress      string `json:"fatherWorkAddress"`
	ResponsibleEmployer    string `json:"responsibleEmployer"`
	ResponsibleOccupation  string `json:"responsibleOccupation"`
	ResponsibleWorkAddress string `json:"responsibleWorkAddress"`

	// Current school or creche
	CurrentSchoolName    string `json:"currentSchoolName"`
	CurrentSchoolAddress string `json:"currentSchoolAddress"`
	CurrentSchoolTel     string `json:"currentSchoolTel"`
	CurrentSchoolContact string `json:"currentSchoolContact"`
	CurrentSchoolGrade   string `json:"currentSchoolGrade"`
	ReasonForLeaving     string `json:"reasonForLeaving"`

	// Payment
	PaymentMethod string `json:"paymentMethod"`
	AccountHolder string `json:"accountHolder"`

	// Consent
	ConsentTerms   bool `json:"consentTerms"`
	ConsentPrivacy bool `json:"consentPrivacy"`
	ConsentMedia   bool `json:"consentMedia"`
}

// LearnerFullName joins the learner name and surname for display and search.
func (d ApplicationDraft) LearnerFullName() string {
	switch {
	case blank(d.LearnerName):
		return trimmed(d.Surname)
	case blank(d.Surname):
		return trimmed(d.LearnerName)
	default:
		return trimmed(d.LearnerName) + " " + trimmed(d.Surname)
	}
}
