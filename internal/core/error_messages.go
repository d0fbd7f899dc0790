package core

// error_messages.go assigns stable error codes to failures so audit error
// records and operator alerts can be grouped.
//
// # Classified Failures (FILE001-FILE099, CNT001-CNT099)
//
// Every FailureKind has a fixed code:
//
//	FILE001 InvalidFileName       FILE005 InvalidCompression
//	FILE002 InvalidZipFileName    FILE006 InvalidDelimiter
//	FILE003 EmptyFile             FILE007 InvalidEncoding
//	FILE004 CorruptFile           FILE008 NoValidMembersInArchive
//
//	CNT001 ConfigMismatch         CNT003 InvalidHeaderCount
//	CNT002 InvalidSummaryCount    CNT004 InvalidCountCondition
//
// # Unclassified Errors (SYS001-SYS099)
//
// System errors are matched by substring against errorPatterns, first match
// wins. Unmatched errors get SYS000.

import (
	"strings"
)

// ErrorMessage describes a failure for operators.
type ErrorMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Stable reference code
}

var failureMessages = map[FailureKind]ErrorMessage{
	InvalidFileName:         {"File name matches no declared pattern", "Check the file name against the pattern catalog", "FILE001"},
	InvalidZipFileName:      {"Archive name matches no declared zip pattern", "Check the archive name against the zip patterns", "FILE002"},
	EmptyFile:               {"File is empty", "Ask the sender to redeliver the file", "FILE003"},
	CorruptFile:             {"File could not be parsed", "Ask the sender to redeliver a well-formed file", "FILE004"},
	InvalidCompression:      {"Archive failed its integrity test", "Ask the sender to redeliver the archive", "FILE005"},
	InvalidDelimiter:        {"Detected delimiter differs from the configured one", "Confirm the delimiter with the sender", "FILE006"},
	InvalidEncoding:         {"File is not valid UTF-8", "Ask the sender to deliver UTF-8", "FILE007"},
	NoValidMembersInArchive: {"No archive member passed validation", "Review the member exclusions in the run log", "FILE008"},
	ConfigMismatch:          {"File content does not match its metadata configuration", "Compare the file header rows with the scenario", "CNT001"},
	InvalidSummaryCount:     {"Declared summary count is below the row count", "Confirm the record count with the sender", "CNT002"},
	InvalidHeaderCount:      {"Declared header count differs from the row count", "Confirm the record count with the sender", "CNT003"},
	InvalidCountCondition:   {"Count validation condition is not supported", "Fix the condition in the pattern rules", "CNT004"},
}

type errorPattern struct {
	pattern string
	msg     ErrorMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Connectivity (SYS001-SYS003)
	// =========================================================================
	{"connection refused", ErrorMessage{"Unable to reach a backing service", "Retried on the next invocation", "SYS001"}},
	{"connection reset", ErrorMessage{"Connection to a backing service was interrupted", "Retried on the next invocation", "SYS002"}},
	{"timeout", ErrorMessage{"Operation timed out", "Retried on the next invocation", "SYS003"}},
	{"deadline exceeded", ErrorMessage{"Operation timed out", "Retried on the next invocation", "SYS003"}},

	// =========================================================================
	// Storage (SYS010-SYS012)
	// =========================================================================
	{"copy did not complete", ErrorMessage{"Store-side copy did not finish in time", "Check the destination location, the file stays in place", "SYS010"}},
	{"e_object_not_found", ErrorMessage{"Object disappeared during processing", "No action, the next listing decides", "SYS011"}},
	{"e_permission_denied", ErrorMessage{"Storage credentials lack permission", "Check the storage access policy", "SYS012"}},

	// =========================================================================
	// Decryption (SYS020-SYS021)
	// =========================================================================
	{"decrypt", ErrorMessage{"Payload could not be decrypted", "Check the key pair shared with the sender", "SYS020"}},
	{"private key", ErrorMessage{"Private key could not be loaded", "Check the configured private key", "SYS021"}},

	// =========================================================================
	// Configuration (SYS030)
	// =========================================================================
	{"fill rule", ErrorMessage{"Fill rule configuration is invalid", "Fix the fill rules in the pattern catalog", "SYS030"}},
	{"scenario", ErrorMessage{"Metadata scenario configuration is invalid", "Fix the scenario configuration file", "SYS030"}},
}

var defaultMessage = ErrorMessage{
	Message: "An unexpected error occurred",
	Action:  "Retried on the next invocation",
	Code:    "SYS000",
}

// MapError returns the operator message for err. Classified failures map by
// kind, everything else by the first matching pattern.
func MapError(err error) ErrorMessage {
	if err == nil {
		return ErrorMessage{}
	}
	if f, ok := AsFailure(err); ok {
		if msg, ok := failureMessages[f.Kind]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// CodeFor returns the stable code of a failure kind.
func CodeFor(kind FailureKind) string {
	if msg, ok := failureMessages[kind]; ok {
		return msg.Code
	}
	return defaultMessage.Code
}
