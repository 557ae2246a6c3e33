package models

import (
	"net/url"
	"strings"
	"time"
)

// CardType selects one of the three card templates.
type CardType string

const (
	CardTypeMinimal   CardType = "Minimal"
	CardTypeModern    CardType = "Modern"
	CardTypeCorporate CardType = "Corporate"
)

// CardTypes lists the supported types in declaration order.
var CardTypes = []CardType{CardTypeMinimal, CardTypeModern, CardTypeCorporate}

func (t CardType) Valid() bool {
	for _, ct := range CardTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// Template is the name of the presentational template a client renders for this type.
func (t CardType) Template() string {
	switch t {
	case CardTypeModern:
		return "modern"
	case CardTypeCorporate:
		return "corporate"
	default:
		return "minimal"
	}
}

type SocialLink struct {
	Platform string `json:"platform" bson:"platform"`
	URL      string `json:"url" bson:"url"`
	Icon     string `json:"icon" bson:"icon,omitempty"`
}

type Card struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	CardType    CardType     `json:"card_type"`
	Job         string       `json:"job"`
	Company     string       `json:"company"`
	Bio         string       `json:"bio"`
	Phone       string       `json:"phone"`
	WebSite     string       `json:"web_site"`
	Address     string       `json:"address"`
	SocialLinks []SocialLink `json:"socialLinks"`
	User        *PublicUser  `json:"user,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CardRequest is the body of both create-card and update-card. Updates
// replace every field.
type CardRequest struct {
	CardType    CardType     `json:"card_type"`
	Job         string       `json:"job"`
	Company     string       `json:"company"`
	Bio         string       `json:"bio"`
	Phone       string       `json:"phone"`
	WebSite     string       `json:"web_site"`
	Address     string       `json:"address"`
	SocialLinks []SocialLink `json:"socialLinks"`
}

const (
	maxBioLength     = 1000
	maxFieldLength   = 200
	maxSocialLinks   = 20
	maxPhoneLength   = 30
	maxAddressLength = 300
)

func (r *CardRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CardType == "" {
		errors["card_type"] = "Card type is required"
	} else if !r.CardType.Valid() {
		errors["card_type"] = "Card type must be one of Minimal, Modern, Corporate"
	}
	if len(r.Job) > maxFieldLength {
		errors["job"] = "Job is too long"
	}
	if len(r.Company) > maxFieldLength {
		errors["company"] = "Company is too long"
	}
	if len(r.Bio) > maxBioLength {
		errors["bio"] = "Bio is too long"
	}
	if len(r.Phone) > maxPhoneLength {
		errors["phone"] = "Phone is too long"
	}
	if len(r.Address) > maxAddressLength {
		errors["address"] = "Address is too long"
	}
	if r.WebSite != "" && !isHTTPURL(r.WebSite) {
		errors["web_site"] = "Web site must be an http(s) URL"
	}
	if len(r.SocialLinks) > maxSocialLinks {
		errors["socialLinks"] = "Too many social links"
	} else {
		for _, l := range r.SocialLinks {
			if strings.TrimSpace(l.Platform) == "" {
				errors["socialLinks"] = "Every social link needs a platform"
				break
			}
			if !isHTTPURL(l.URL) {
				errors["socialLinks"] = "Every social link needs an http(s) URL"
				break
			}
		}
	}

	return errors
}

// Normalize trims whitespace from every text field.
func (r *CardRequest) Normalize() {
	r.Job = strings.TrimSpace(r.Job)
	r.Company = strings.TrimSpace(r.Company)
	r.Bio = strings.TrimSpace(r.Bio)
	r.Phone = strings.TrimSpace(r.Phone)
	r.WebSite = strings.TrimSpace(r.WebSite)
	r.Address = strings.TrimSpace(r.Address)
	for i := range r.SocialLinks {
		r.SocialLinks[i].Platform = strings.TrimSpace(r.SocialLinks[i].Platform)
		r.SocialLinks[i].URL = strings.TrimSpace(r.SocialLinks[i].URL)
		r.SocialLinks[i].Icon = strings.TrimSpace(r.SocialLinks[i].Icon)
	}
}

// CardSelection is the response of get-card-by-username: the user's cards
// filtered down to the selected type.
type CardSelection struct {
	User     PublicUser `json:"user"`
	Types    []CardType `json:"types"`
	Selected CardType   `json:"selected"`
	Template string     `json:"template"`
	Cards    []Card     `json:"cards"`
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
