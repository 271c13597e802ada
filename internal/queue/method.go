package queue

import (
	"fmt"
	"net/http"
)

// Method is the closed set of operations a queue entry can replay. Keeping
// this a tagged variant (rather than a verb string) makes dispatch
// exhaustive: adding a method without wiring it fails loudly at parse time.
type Method int

const (
	MethodCreate Method = iota
	MethodRead
	MethodUpdate
	MethodDelete
)

var methodNames = map[Method]string{
	MethodCreate: "create",
	MethodRead:   "read",
	MethodUpdate: "update",
	MethodDelete: "delete",
}

var methodVerbs = map[Method]string{
	MethodCreate: http.MethodPost,
	MethodRead:   http.MethodGet,
	MethodUpdate: http.MethodPut,
	MethodDelete: http.MethodDelete,
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// HTTPVerb returns the HTTP verb used to replay this method.
func (m Method) HTTPVerb() string {
	return methodVerbs[m]
}

// ParseMethod converts a persisted method name back to its variant.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown method %q", s)
}
