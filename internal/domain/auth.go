package domain

// SubjectType identifies who a bearer token was issued to.
type SubjectType string

// SubjectTypeOperator is the clinic operator reading intake records.
const SubjectTypeOperator SubjectType = "OPERATOR"

// Operator is the authenticated caller of the operator API.
type Operator struct {
	Username string
}
