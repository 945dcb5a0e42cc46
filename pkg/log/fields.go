package log

const (
	// Connection
	FieldClientID = "client_id"
	FieldRemote   = "remote_addr"

	// Actor
	FieldUserID = "user_id"

	// Protocol
	FieldEnvelopeType = "envelope_type"
	FieldMessageID    = "message_id"

	// Service
	FieldService = "service"
)
