package naming

import "strings"

// sqlReservedWords are keywords reserved by the SQL standard or by one of the
// supported vendors. Unquoted identifiers with these names fail to parse.
var sqlReservedWords = map[string]bool{
	"all": true, "alter": true, "and": true, "any": true, "as": true, "asc": true,
	"between": true, "by": true, "case": true, "check": true, "column": true,
	"constraint": true, "create": true, "cross": true, "current": true, "default": true,
	"delete": true, "desc": true, "distinct": true, "drop": true, "else": true,
	"end": true, "exists": true, "false": true, "fetch": true, "for": true,
	"foreign": true, "from": true, "full": true, "grant": true, "group": true,
	"having": true, "in": true, "index": true, "inner": true, "insert": true,
	"intersect": true, "into": true, "is": true, "join": true, "key": true,
	"left": true, "level": true, "like": true, "limit": true, "not": true,
	"null": true, "number": true, "of": true, "offset": true, "on": true,
	"or": true, "order": true, "outer": true, "primary": true, "range": true,
	"references": true, "right": true, "row": true, "rows": true, "select": true,
	"session": true, "set": true, "table": true, "then": true, "to": true,
	"true": true, "union": true, "unique": true, "update": true, "user": true,
	"using": true, "values": true, "when": true, "where": true, "window": true,
	"with": true,
}

// IsReservedWord checks if name is a reserved SQL keyword.
func IsReservedWord(name string) bool {
	return sqlReservedWords[strings.ToLower(name)]
}
