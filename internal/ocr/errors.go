package ocr

import "fmt"

// InputError reports invalid caller-supplied input: corrupt base64, an empty
// payload, or a missing field source. It is fatal and surfaces synchronously.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// ErrNoFields is returned when a field-extraction call carries no usable
// field definitions at all.
var ErrNoFields = &InputError{Reason: "No field parameters provided."}

// DecodeError reports a payload that could not be decoded as an image or
// rasterized as a document. It fails the whole call; no partial pages are
// ever returned alongside it.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode payload: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// RecognitionError reports a failure inside the text recognizer: an
// unsupported language code, corrupt input, or an engine fault. Field
// extraction treats it as recoverable per field; bulk text jobs treat it
// as fatal for the job.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string { return fmt.Sprintf("recognition failed: %v", e.Err) }

func (e *RecognitionError) Unwrap() error { return e.Err }
