package auth

// Known OAuth scopes used by the command surface.
const (
	ScopeStudiesWrite = "studies:write"
	ScopeStudiesRead  = "studies:read"
)
