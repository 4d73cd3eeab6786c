package rcon

import "fmt"

// Packet type tags as they appear in the wire type field.
const (
	// TypeResponse is a server reply to an executed command.
	TypeResponse int32 = 0
	// TypeExecCommand is a client request to execute a console command.
	TypeExecCommand int32 = 2
	// TypeAuth is the client authentication request carrying the password.
	TypeAuth int32 = 3
	// TypeAuthFailed marks a rejected authentication.
	TypeAuthFailed int32 = -1
)

const (
	// AuthID is the fixed packet id used for the authentication request.
	AuthID int32 = 10
	// AuthFailedID is the sentinel id the server answers with when it
	// rejects the password, instead of echoing the request id.
	AuthFailedID int32 = -1
)

// Packet is the unit of exchange on the wire. The id is chosen by the
// sender and echoed back on the matching reply; it only needs to be unique
// among requests currently in flight, not globally.
//
// The body must be ASCII text without embedded NUL bytes. Behavior for
// other payloads is undefined by the protocol.
type Packet struct {
	Type int32
	ID   int32
	Body string
}

// Size returns the value of the wire size field: the frame length minus
// the 4 bytes of the size field itself.
func (p *Packet) Size() int32 {
	return int32(len(p.Body) + packetOverhead)
}

func (p *Packet) String() string {
	return fmt.Sprintf("packet{type=%d id=%d body=%q}", p.Type, p.ID, p.Body)
}
