package catalog

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

// Input is the writable part of a category. A nil IsActive means active.
type Input struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}

func (in Input) active() bool {
	return activeOrDefault(in.IsActive)
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}
