package model

// User is the authenticated principal driving a seat session.  Both values
// come from the access token issued by the external identity provider: ID is
// the `sub` claim and Name the optional `name` claim.  ID is the value stored
// in the seats.selected_by and seats.reserved_by columns.
type User struct {
    ID   string `json:"id"`   // token subject
    Name string `json:"name"` // display name, may be empty
}
