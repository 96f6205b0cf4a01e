package admission

import "strings"

// StageErrors maps a field key to a human readable message.
type StageErrors map[string]string

// OK reports whether no field was flagged.
func (e StageErrors) OK() bool {
	return len(e) == 0
}

// Has reports whether field was flagged.
func (e StageErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Without returns e with field removed. e itself is never modified.
func (e StageErrors) Without(field string) StageErrors {
	if !e.Has(field) {
		return e
	}
	out := make(StageErrors, len(e)-1)
	for k, v := range e {
		if k != field {
			out[k] = v
		}
	}
	return out
}

// Candidate is one alternative inside an or-group: its values and the fields flagged when
// no alternative qualifies.
type Candidate struct {
	Fields []string
	Values []string
}

// Satisfied reports whether every value of the candidate is filled in.
func (c Candidate) Satisfied() bool {
	if len(c.Values) == 0 {
		return false
	}
	for _, v := range c.Values {
		if blank(v) {
			return false
		}
	}
	return true
}

// AtLeastOne passes when any candidate is satisfied. Otherwise every field of every
// candidate is flagged with message so each completion path is visible at once.
func AtLeastOne(errs StageErrors, message string, candidates ...Candidate) bool {
	for _, c := range candidates {
		if c.Satisfied() {
			return true
		}
	}
	for _, c := range candidates {
		for _, f := range c.Fields {
			errs[f] = message
		}
	}
	return false
}

// Validate returns the field errors blocking an advance from stage. It is pure and cheap.
func Validate(stage Stage, d ApplicationDraft) StageErrors {
	errs := StageErrors{}
	switch stage {
	case StageLearner:
		requireField(errs, FieldSurname, d.Surname, "Surname is required")
		requireField(errs, FieldLearnerName, d.LearnerName, "Learner name is required")
		requireField(errs, FieldDateOfBirth, d.DateOfBirth, "Date of birth is required")
		requireField(errs, FieldPlaceOfBirth, d.PlaceOfBirth, "Place of birth is required")
		requireField(errs, FieldGradeApplying, d.GradeApplying, "Grade applying for is required")
		requireField(errs, FieldYear, d.Year, "Year of admission is required")
		if d.HasRepeated {
			requireField(errs, FieldRepeatedGrade, d.RepeatedGrade, "Please state which grade was repeated")
		}
	case StageGuardians:
		AtLeastOne(errs, "Provide a full name and cell phone number for at least one parent or guardian",
			Candidate{Fields: []string{FieldMotherName, FieldMotherCell}, Values: []string{d.MotherName, d.MotherCell}},
			Candidate{Fields: []string{FieldFatherName, FieldFatherCell}, Values: []string{d.FatherName, d.FatherCell}},
			Candidate{Fields: []string{FieldResponsibleName, FieldResponsibleCell}, Values: []string{d.ResponsibleName, d.ResponsibleCell}},
		)
		AtLeastOne(errs, "Provide a residential address for at least one parent or guardian",
			Candidate{Fields: []string{FieldMotherAddress}, Values: []string{d.MotherAddress}},
			Candidate{Fields: []string{FieldFatherAddress}, Values: []string{d.FatherAddress}},
			Candidate{Fields: []string{FieldResponsibleAddress}, Values: []string{d.ResponsibleAddress}},
		)
	case StageCurrentSchool:
		// Both are needed to verify the learner's background with the previous school.
		requireField(errs, FieldCurrentSchoolTel, d.CurrentSchoolTel, "Telephone number of the current school or creche is required")
		requireField(errs, FieldCurrentSchoolContact, d.CurrentSchoolContact, "Contact person at the current school or creche is required")
	case StagePayment:
		requireField(errs, FieldPaymentMethod, d.PaymentMethod, "Select a payment method")
		if !d.ConsentTerms {
			errs[FieldConsentTerms] = "You must accept the terms and conditions"
		}
		if !d.ConsentPrivacy {
			errs[FieldConsentPrivacy] = "You must accept the privacy policy"
		}
	}
	return errs
}

// ValidateAll checks every data stage in order and returns the first failing stage with its
// errors. ok is true when the whole draft can be submitted.
func ValidateAll(d ApplicationDraft) (stage Stage, errs StageErrors, ok bool) {
	for _, s := range DataStages() {
		if fieldErrs := Validate(s, d); !fieldErrs.OK() {
			return s, fieldErrs, false
		}
	}
	return LastDataStage, StageErrors{}, true
}

func requireField(errs StageErrors, field, value, message string) {
	if blank(value) {
		errs[field] = message
	}
}

func blank(v string) bool {
	return strings.TrimSpace(v) == ""
}

func trimmed(v string) string {
	return strings.TrimSpace(v)
}
