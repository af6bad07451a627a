package agent

// Messages is the stable catalog of human-readable format strings used in
// StatusMessage.Description.Format. Tests match against these directly (or
// against documented substrings of them), so wording here is load-bearing and
// must not drift once published.
type Messages struct {
	SourceFileNotFound         string
	SourceFileAmbiguous        string
	UnsupportedExtension       string
	InvalidLineNumber          string
	ConditionCompileError      string
	ExpressionCompileError     string
	ExpressionRuntimeError     string
	VariableValueHazardous     string
	ValueTruncated             string
	FrameNotExpanded           string
	SnapshotExpired            string
}

// DefaultMessages is the catalog exposed as api.messages.
var DefaultMessages = Messages{
	SourceFileNotFound:     "No source file found matching %s",
	SourceFileAmbiguous:    "SOURCE_FILE_AMBIGUOUS",
	UnsupportedExtension:   "Only .%s files are supported for breakpoints",
	InvalidLineNumber:      "INVALID_LINE_NUMBER: %s:%d",
	ConditionCompileError:  "Error compiling condition.",
	ExpressionCompileError: "Error Compiling Expression",
	ExpressionRuntimeError: "Exception occurred: %s",
	VariableValueHazardous: "Unable to evaluate due to risk of side effect",
	ValueTruncated:         "Only first %d elements of %d shown",
	FrameNotExpanded:       "Locals and arguments are not available beyond the expand frame limit",
	SnapshotExpired:        "The snapshot has expired",
}
