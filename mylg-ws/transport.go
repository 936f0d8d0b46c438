package mylgws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// ErrGone reports that the target connection no longer exists.
var ErrGone = errors.New("connection gone")

// Transport pushes a payload to a single open connection. Implementations
// return an error wrapping ErrGone when the connection no longer exists.
type Transport interface {
	Send(ctx context.Context, connectionID string, data []byte) error
}

// ManagementTransport posts to connections through the API Gateway
// Management API.
type ManagementTransport struct {
	client apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// NewManagementTransport builds a transport for the given management
// endpoint, e.g. https://{api-id}.execute-api.{region}.amazonaws.com/{stage}.
func NewManagementTransport(sess *session.Session, endpoint string) *ManagementTransport {
	return &ManagementTransport{
		client: apigatewaymanagementapi.New(sess, aws.NewConfig().WithEndpoint(endpoint)),
	}
}

// WithClient wraps an existing management API client.
func WithClient(client apigatewaymanagementapiiface.ApiGatewayManagementApiAPI) *ManagementTransport {
	return &ManagementTransport{client: client}
}

func (t *ManagementTransport) Send(ctx context.Context, connectionID string, data []byte) error {
	_, err := t.client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		if isGoneException(err) {
			return fmt.Errorf("posting to connection %v: %w", connectionID, ErrGone)
		}
		return fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return nil
}

// isGoneException checks if the error is a GoneException (HTTP 410),
// indicating the WebSocket connection no longer exists.
func isGoneException(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return true
	}
	var rerr awserr.RequestFailure
	if errors.As(err, &rerr) && rerr.StatusCode() == 410 {
		return true
	}
	return strings.Contains(err.Error(), "GoneException")
}
