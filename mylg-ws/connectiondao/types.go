package connectiondao

// Connection is one live WebSocket connection stored in DynamoDB. A row's
// existence is the source of truth for "this socket is live".
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	UserID       string `dynamodbav:"user_id" ddb:"gsi_hash:UserSessionIndex"`
	SessionID    string `dynamodbav:"session_id,omitempty"`
	ConnectedAt  int64  `dynamodbav:"connected_at" ddb:"gsi_range:UserSessionIndex"`
	ExpiresAt    int64  `dynamodbav:"expires_at"` // table TTL attribute, epoch seconds
	Endpoint     string `dynamodbav:"endpoint,omitempty"`
	Stage        string `dynamodbav:"stage,omitempty"`
	SourceIP     string `dynamodbav:"source_ip,omitempty"`
	UserAgent    string `dynamodbav:"user_agent,omitempty"`
}
