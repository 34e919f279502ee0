package dispatch

// Specifier identifies a prospective recipient in one of four forms: a
// loaded contact, a contact with an explicit address record, a bare address
// record id, or a raw address string. Construct values with the From*
// functions; the zero value is invalid.
type Specifier struct {
	contact   Contact
	address   string
	addressID int64
	kind      specKind
}

type specKind int

const (
	specInvalid specKind = iota
	specContact
	specAddressID
	specAddress
)

// FromContact specifies a loaded contact whose first associated address
// record should be used.
func FromContact(c Contact) Specifier {
	return Specifier{kind: specContact, contact: c}
}

// FromContactAddress specifies a loaded contact together with an explicit
// address record id scoped to that contact.
func FromContactAddress(c Contact, addressID int64) Specifier {
	return Specifier{kind: specContact, contact: c, addressID: addressID}
}

// FromAddressID specifies a bare address record id. The record must resolve
// to an owning contact; unowned records cannot become recipients.
func FromAddressID(id int64) Specifier {
	return Specifier{kind: specAddressID, addressID: id}
}

// FromAddress specifies a raw address string not belonging to any stored
// contact.
func FromAddress(address string) Specifier {
	return Specifier{kind: specAddress, address: address}
}
