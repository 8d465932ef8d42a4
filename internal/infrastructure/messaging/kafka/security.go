package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
)

// newSASLMechanism builds the broker authentication mechanism shared by the
// producer transport and the consumer dialer.
func newSASLMechanism(mechanism, username, password string) (sasl.Mechanism, error) {
	switch mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: username, Password: password}, nil
	case "SCRAM-SHA-256":
		mech, err := scram.Mechanism(scram.SHA256, username, password)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "building SCRAM-SHA-256 mechanism")
		}
		return mech, nil
	case "SCRAM-SHA-512":
		mech, err := scram.Mechanism(scram.SHA512, username, password)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "building SCRAM-SHA-512 mechanism")
		}
		return mech, nil
	default:
		return nil, errors.Newf(errors.ErrCodeBadRequest, "unsupported SASL mechanism %q", mechanism)
	}
}

// newTLSConfig returns a TLS config verifying brokers against the optional
// CA bundle at certPath. An empty path falls back to the system roots.
func newTLSConfig(certPath string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if certPath == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "reading kafka CA certificate")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Newf(errors.ErrCodeMessagingError, "no certificates found in %s", certPath)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
