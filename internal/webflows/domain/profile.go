package domain

import (
	"bytes"
	"encoding/json"
)

// UserProfileResponse is the user resource from /api/2/user/{uuid}. The API
// is old and loosely typed, so a few fields get lenient decoders.
type UserProfileResponse struct {
	UUID                string             `json:"uuid,omitempty"`
	UserID              string             `json:"userId,omitempty"`
	Status              *int               `json:"status,omitempty"`
	Email               string             `json:"email,omitempty"`
	EmailVerified       LenientString      `json:"emailVerified,omitempty"` // timestamp, or false when unverified
	Emails              []Identifier       `json:"emails,omitempty"`
	PhoneNumber         string             `json:"phoneNumber,omitempty"`
	PhoneNumberVerified LenientString      `json:"phoneNumberVerified,omitempty"`
	PhoneNumbers        []Identifier       `json:"phoneNumbers,omitempty"`
	DisplayName         string             `json:"displayName,omitempty"`
	Name                *Name              `json:"name,omitempty"`
	Addresses           Addresses          `json:"addresses,omitempty"`
	Gender              string             `json:"gender,omitempty"`
	Birthday            Birthday           `json:"birthday,omitempty"`
	Accounts            map[string]Account `json:"accounts,omitempty"`
	Merchants           []int              `json:"merchants,omitempty"`
	Published           string             `json:"published,omitempty"`
	Verified            string             `json:"verified,omitempty"`
	Updated             string             `json:"updated,omitempty"`
	PasswordChanged     string             `json:"passwordChanged,omitempty"`
	LastAuthenticated   string             `json:"lastAuthenticated,omitempty"`
	LastLoggedIn        string             `json:"lastLoggedIn,omitempty"`
	Locale              string             `json:"locale,omitempty"`
	UTCOffset           string             `json:"utcOffset,omitempty"`
}

// Identifier is an email address or phone number entry.
type Identifier struct {
	Value        string `json:"value,omitempty"`
	Type         string `json:"type,omitempty"`
	Primary      *bool  `json:"primary,omitempty"`
	Verified     *bool  `json:"verified,omitempty"`
	VerifiedTime string `json:"verifiedTime,omitempty"`
}

type Name struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
	Formatted  string `json:"formatted,omitempty"`
}

type Account struct {
	ID          string `json:"id,omitempty"`
	AccountName string `json:"accountName,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Connected   string `json:"connected,omitempty"`
}

// AddressType keys the address map: home, delivery or invoice.
type AddressType string

const (
	AddressHome     AddressType = "home"
	AddressDelivery AddressType = "delivery"
	AddressInvoice  AddressType = "invoice"
)

type Address struct {
	Formatted     string      `json:"formatted,omitempty"`
	StreetAddress string      `json:"streetAddress,omitempty"`
	PostalCode    string      `json:"postalCode,omitempty"`
	Locality      string      `json:"locality,omitempty"`
	Region        string      `json:"region,omitempty"`
	Country       string      `json:"country,omitempty"`
	Type          AddressType `json:"type,omitempty"`
}

// Addresses is a map, except that the API sends [] when there are none.
type Addresses map[AddressType]Address

func (a *Addresses) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
		*a = Addresses{}
		return nil
	}
	m := map[AddressType]Address{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// LenientString takes a JSON string and silently drops any other type.
type LenientString string

func (s *LenientString) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		*s = ""
		return nil
	}
	*s = LenientString(v)
	return nil
}

// Birthday maps the "0000-00-00" placeholder to empty.
type Birthday string

func (b *Birthday) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == "0000-00-00" {
		v = ""
	}
	*b = Birthday(v)
	return nil
}
