package certs

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Generate(dir, "localhost"))

	server, err := LoadServerTLSConfig(dir)
	require.NoError(t, err)
	require.Len(t, server.Certificates, 1)
	require.Equal(t, tls.RequireAndVerifyClientCert, server.ClientAuth)
	require.Contains(t, server.NextProtos, "h3")

	client, err := LoadClientTLSConfig(dir)
	require.NoError(t, err)
	require.Len(t, client.Certificates, 1)
	require.NotNil(t, client.RootCAs)
}

func TestEphemeralPair(t *testing.T) {
	server, client, err := Ephemeral("localhost")
	require.NoError(t, err)
	require.Len(t, server.Certificates, 1)
	require.NotNil(t, client.RootCAs)

	cert, err := x509.ParseCertificate(server.Certificates[0].Certificate[0])
	require.NoError(t, err)
	require.NoError(t, cert.VerifyHostname("localhost"))
	require.NoError(t, cert.VerifyHostname("127.0.0.1"))
}
