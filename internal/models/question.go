package models

// Operator identifies an arithmetic operation.
type Operator string

const (
	OpAdd Operator = "+"
	OpSub Operator = "-"
	OpMul Operator = "*"
	OpDiv Operator = "/"
)

// Question is a single arithmetic problem. Immutable once generated; a match
// holds a fixed sequence shared verbatim by both players.
type Question struct {
	Op     Operator `json:"op"`
	A      int      `json:"a"`
	B      int      `json:"b"`
	Answer int      `json:"answer"`
}
