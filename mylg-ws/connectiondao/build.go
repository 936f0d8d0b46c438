package connectiondao

import "github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

// DefaultIndexName is the GSI keyed by (user_id, connected_at) used for
// session lookups.
const DefaultIndexName = "UserSessionIndex"

// Build creates a new connections DAO using the standard table and index
// names for the given environment.
func Build(api dynamodbiface.DynamoDBAPI, env string) *DAO {
	return New(api, TableName(env), DefaultIndexName)
}

// TableName returns the DynamoDB table name for the given environment.
func TableName(env string) string {
	return env + "-mylg-ws--connections"
}
