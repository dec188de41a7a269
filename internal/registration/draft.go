package registration

import "github.com/refera-net/refera/internal/validate"

// Draft is the mutable client-side registration form. It lives only for the
// duration of one flow and is wiped on success or abandonment.
type Draft struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	ReferralCode    string
}

func (d Draft) values() validate.Values {
	return validate.Values{
		validate.FieldUsername:        d.Username,
		validate.FieldEmail:           d.Email,
		validate.FieldPassword:        d.Password,
		validate.FieldConfirmPassword: d.ConfirmPassword,
		validate.FieldReferralCode:    d.ReferralCode,
	}
}

// wipe clears every secret the draft holds.
func (d *Draft) wipe() {
	*d = Draft{}
}
