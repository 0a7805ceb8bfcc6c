package media

// Kind classifica o resultado de uma derivação.
type Kind int

const (
	Success Kind = iota
	AlreadyExists
	NoImage
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case AlreadyExists:
		return "already_exists"
	case NoImage:
		return "no_image"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Status é o resultado de Derive. Reason e Err só são preenchidos em Failed.
type Status struct {
	Kind   Kind
	Key    string
	Reason string
	Err    error
}

func (s Status) String() string {
	if s.Kind == Failed && s.Reason != "" {
		return s.Kind.String() + ": " + s.Reason
	}
	return s.Kind.String()
}

// OK indica que a miniatura existe após a chamada.
func (s Status) OK() bool {
	return s.Kind == Success || s.Kind == AlreadyExists
}

func failed(key, reason string, err error) Status {
	if err != nil {
		reason = reason + ": " + err.Error()
	}
	return Status{Kind: Failed, Key: key, Reason: reason, Err: err}
}
