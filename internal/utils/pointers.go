package utils

// StringPtr returns a pointer to a copy of s, for optional columns and JSON fields
func StringPtr(s string) *string {
	return &s
}
