package plan

// Patch is a stage's state delta: one optional replacement per sub-record.
type Patch struct {
	User      *User
	Locations *Locations
	Transport *Transport
	Companies *Companies
	Itinerary *Itinerary
	Control   *Control
}

// Merge returns s with every non-nil sub-record of p substituted wholesale.
// Nil sub-records are left untouched. There is no field-level merge.
func Merge(s State, p Patch) State {
	if p.User != nil {
		s.User = *p.User
	}
	if p.Locations != nil {
		s.Locations = *p.Locations
	}
	if p.Transport != nil {
		s.Transport = *p.Transport
	}
	if p.Companies != nil {
		s.Companies = *p.Companies
	}
	if p.Itinerary != nil {
		s.Itinerary = *p.Itinerary
	}
	if p.Control != nil {
		s.Control = *p.Control
	}
	return s
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.User == nil && p.Locations == nil && p.Transport == nil &&
		p.Companies == nil && p.Itinerary == nil && p.Control == nil
}

// Failure is the patch a stage returns alongside an error: only Control,
// carrying msg.
func Failure(s State, msg string) Patch {
	c := s.Control
	c.ErrorMessage = msg
	return Patch{Control: &c}
}

// ClearError returns a Control patch with the error message cleared, or nil
// when there is nothing to clear.
func ClearError(s State) *Control {
	if s.Control.ErrorMessage == "" {
		return nil
	}
	c := s.Control
	c.ErrorMessage = ""
	return &c
}
