package connectiondao

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// ErrConnectionExists is returned by Insert when a row with the same
// connection id is already present.
var ErrConnectionExists = errors.New("connection already exists")

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
	indexName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName, indexName string) *DAO {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
		indexName: indexName,
	}
}

// Table exposes the typed table, mostly for creating it in tests and tooling.
func (d *DAO) Table() *ddb.Table {
	return d.table
}

// Insert stores a connection record only if no record with the same
// connection id exists.
func (d *DAO) Insert(ctx context.Context, conn Connection) error {
	err := d.table.Put(conn).
		Condition("attribute_not_exists(#ConnectionID)").
		RunWithContext(ctx)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("failed to insert connection %v: %w", conn.ConnectionID, ErrConnectionExists)
		}
		return fmt.Errorf("failed to insert connection %v: %w", conn.ConnectionID, err)
	}
	return nil
}

// Get performs a strongly consistent read of a connection record. Returns
// nil if not found.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ConsistentRead(true).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get connection %v: %w", connectionID, err)
	}
	return &conn, nil
}

// Delete removes a connection record by ID. Deleting an absent record is not
// an error.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(connectionID).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to delete connection %v: %w", connectionID, err)
	}
	return nil
}

// Scan returns every connection record, following pagination to the end.
func (d *DAO) Scan(ctx context.Context) ([]Connection, error) {
	var (
		conns   []Connection
		pageErr error
	)
	err := d.api.ScanPagesWithContext(ctx, &dynamodb.ScanInput{
		TableName: aws.String(d.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		var items []Connection
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &items); err != nil {
			pageErr = err
			return false
		}
		conns = append(conns, items...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan connections: %w", err)
	}
	if pageErr != nil {
		return nil, fmt.Errorf("failed to unmarshal scanned connections: %w", pageErr)
	}
	return conns, nil
}

// QueryBySession returns every connection registered for the given user and
// session id. Reads from the GSI and is therefore eventually consistent.
func (d *DAO) QueryBySession(ctx context.Context, userID, sessionID string) ([]Connection, error) {
	var (
		conns   []Connection
		pageErr error
	)
	err := d.api.QueryPagesWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(d.indexName),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		FilterExpression:       aws.String("session_id = :session_id"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":user_id":    {S: aws.String(userID)},
			":session_id": {S: aws.String(sessionID)},
		},
	}, func(page *dynamodb.QueryOutput, lastPage bool) bool {
		var items []Connection
		if err := dynamodbattribute.UnmarshalListOfMaps(page.Items, &items); err != nil {
			pageErr = err
			return false
		}
		conns = append(conns, items...)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query connections for user %v, session %v: %w", userID, sessionID, err)
	}
	if pageErr != nil {
		return nil, fmt.Errorf("failed to unmarshal connections for user %v, session %v: %w", userID, sessionID, pageErr)
	}
	return conns, nil
}

// QueryByUser returns up to limit connections for the given user from the
// GSI. A limit <= 0 returns the first page only.
func (d *DAO) QueryByUser(ctx context.Context, userID string, limit int64) ([]Connection, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		IndexName:              aws.String(d.indexName),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":user_id": {S: aws.String(userID)},
		},
	}
	if limit > 0 {
		input.Limit = aws.Int64(limit)
	}

	output, err := d.api.QueryWithContext(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections for user %v: %w", userID, err)
	}

	var conns []Connection
	if err := dynamodbattribute.UnmarshalListOfMaps(output.Items, &conns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connections for user %v: %w", userID, err)
	}
	return conns, nil
}

func isConditionalCheckFailed(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}
