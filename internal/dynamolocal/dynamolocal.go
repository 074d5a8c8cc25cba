// Package dynamolocal connects to a DynamoDB Local instance, either on this
// host or on the Docker host when running inside a container.
package dynamolocal

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DefaultPort is the port DynamoDB Local listens on by default.
const DefaultPort = 8000

// EndpointEnv names the environment variable that, when set, overrides
// host discovery with a full endpoint URL.
const EndpointEnv = "DYNAMODB_ENDPOINT"

// DockerHost is the name of the Docker host as seen from a container.
const DockerHost = "host.docker.internal"

// DynamoDB Local only uses the access key and region to name its database
// file, so any static values work.
const (
	accessKey = "key"
	secretKey = "secret"
	region    = "us-west-2"
)

var dialTimeout = 500 * time.Millisecond

// Endpoint returns the URL of DynamoDB Local on host:port.
func Endpoint(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Listening reports whether something accepts TCP connections on host:port.
func Listening(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Resolve returns the endpoint to use for port: $DYNAMODB_ENDPOINT if set,
// the Docker host if it is listening, and localhost otherwise.
func Resolve(port int) string {
	if endpoint := os.Getenv(EndpointEnv); endpoint != "" {
		return endpoint
	}
	if Listening(DockerHost, port) {
		return Endpoint(DockerHost, port)
	}
	return Endpoint("localhost", port)
}

// LoadConfig loads an AWS config with the static credentials and region
// DynamoDB Local expects.
func LoadConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewClient returns a DynamoDB client that talks to endpoint.
func NewClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

// Connect returns a client for DynamoDB Local on port, resolved with Resolve.
func Connect(ctx context.Context, port int) (*dynamodb.Client, error) {
	cfg, err := LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, Resolve(port)), nil
}
