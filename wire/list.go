package wire

import "strings"

// JoinList renders a children/attributes list in the "|"-separated form the
// wire protocol uses for GetChildren/GetAttributes replies.
func JoinList(items []string) string { return strings.Join(items, "|") }

// SplitList is the inverse of JoinList; an empty string yields no items.
func SplitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}
