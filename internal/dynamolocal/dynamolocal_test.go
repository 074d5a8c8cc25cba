package dynamolocal

import (
	"context"
	"net"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "http://localhost:8000", Endpoint("localhost", DefaultPort))
	assert.Equal(t, "http://host.docker.internal:4566", Endpoint(DockerHost, 4566))
}

func TestListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port

	assert.True(t, Listening("127.0.0.1", port))

	require.NoError(t, l.Close())
	assert.False(t, Listening("127.0.0.1", port))
}

func TestResolve_EnvOverride(t *testing.T) {
	t.Setenv(EndpointEnv, "http://dynamodb:9000")
	assert.Equal(t, "http://dynamodb:9000", Resolve(DefaultPort))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)

	client := NewClient(cfg, "http://localhost:8000")
	assert.Equal(t, "http://localhost:8000", aws.ToString(client.Options().BaseEndpoint))
}
