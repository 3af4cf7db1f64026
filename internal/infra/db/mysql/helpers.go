package mysql

import "strings"

// stringOrDash supaya kolom non-null tetap aman
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// nonTerminalGuard is appended to poll/finish updates so a late write can
// never regress a terminal status.
const nonTerminalGuard = " AND status IN ('not_started','running')"
