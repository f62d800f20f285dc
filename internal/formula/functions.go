package formula

// FunctionDoc describes one built-in function for the field editor.
type FunctionDoc struct {
	Name        string `json:"name"`
	Syntax      string `json:"syntax"`
	Description string `json:"description"`
}

// Functions returns the built-in catalog in display order. Every entry is
// accepted by Parse; keep this list and functionArity in step.
func Functions() []FunctionDoc {
	return []FunctionDoc{
		{"IF", "IF(condition, then, else)", "Returns then when the condition holds, else otherwise."},
		{"ABS", "ABS(x)", "Absolute value."},
		{"ROUND", "ROUND(x)", "Rounds to the nearest integer."},
		{"CEIL", "CEIL(x)", "Rounds up."},
		{"FLOOR", "FLOOR(x)", "Rounds down."},
		{"SQRT", "SQRT(x)", "Square root."},
		{"LOG", "LOG(x)", "Natural logarithm of a positive number."},
		{"MIN", "MIN(a, b, ...)", "Smallest of two or more numbers."},
		{"MAX", "MAX(a, b, ...)", "Largest of two or more numbers."},
		{"LEN", "LEN(text)", "Number of characters."},
		{"UPPER", "UPPER(text)", "Upper-cases text."},
		{"LOWER", "LOWER(text)", "Lower-cases text."},
		{"STR", "STR(x)", "Converts any value to text."},
		{"TODAY", "TODAY()", "Current date as YYYY-MM-DD."},
		{"NOW", "NOW()", "Current timestamp in RFC 3339 form."},
	}
}
