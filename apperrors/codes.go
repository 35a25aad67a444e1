package apperrors

type Code string

const (
	CodeUnknown             Code = "UNKNOWN"
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeInvalidPair         Code = "INVALID_PAIR"
	CodeEmptyContent        Code = "EMPTY_CONTENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeRegistryUnavailable Code = "REGISTRY_UNAVAILABLE"
	CodeStorageUnavailable  Code = "STORAGE_UNAVAILABLE"
	CodeScoringUnavailable  Code = "SCORING_UNAVAILABLE"
	CodeInternal            Code = "INTERNAL"
)
