package customer

type Customer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Notes    string `json:"notes,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Input is the writable part of a customer. A nil IsActive means active.
type Input struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,max=100,email"`
	Phone    string `json:"phone" validate:"max=20"`
	Address  string `json:"address" validate:"max=500"`
	Notes    string `json:"notes" validate:"max=500"`
	IsActive *bool  `json:"is_active"`
}

func (in Input) customer(id int64) Customer {
	return Customer{
		ID:       id,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Address:  in.Address,
		Notes:    in.Notes,
		IsActive: in.IsActive == nil || *in.IsActive,
	}
}

// Filter narrows List. The zero value matches every customer.
type Filter struct {
	ActiveOnly bool
}
