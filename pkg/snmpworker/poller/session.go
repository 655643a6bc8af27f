// Package poller builds gosnmp sessions from device credentials and issues
// the GET/WALK operations a sensor's OID list calls for, converting raw PDU
// variables into the typed SNMPValue the pipeline works with.
package poller

import (
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/gralabs/snmpworker/models"
	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// DefaultTimeout and DefaultRetries match the original bot's per-request
// SNMP client settings.
const (
	DefaultTimeout = 2 * time.Second
	DefaultRetries = 1
	DefaultPort    = 161
)

// NewSession builds and connects a gosnmp session for ipv4 using cred. The
// caller must Close the session when done with it.
func NewSession(ipv4 string, cred models.Credential) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:  ipv4,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
		MaxOids: 60,
	}

	switch cred.Version {
	case models.CredentialV1:
		g.Version = gosnmp.Version1
		g.Community = cred.Community
	case models.CredentialV2:
		g.Version = gosnmp.Version2c
		g.Community = cred.Community
	case models.CredentialV3:
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = v3MsgFlags(cred)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.Username,
			AuthenticationProtocol:   mapAuthProto(cred.AuthProtocol),
			AuthenticationPassphrase: cred.AuthPassphrase,
			PrivacyProtocol:          mapPrivProto(cred.PrivacyProtocol),
			PrivacyPassphrase:        cred.PrivacyPassphrase,
		}
	default:
		return nil, workerr.NewConfigError("unsupported SNMP credential version "+string(cred.Version), nil)
	}

	if err := g.Connect(); err != nil {
		return nil, workerr.NewSNMPError("connect", err)
	}
	return g, nil
}

func v3MsgFlags(cred models.Credential) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthProtocol != "" && !strings.EqualFold(cred.AuthProtocol, "noauth")
	hasPriv := cred.PrivacyProtocol != "" && !strings.EqualFold(cred.PrivacyProtocol, "nopriv")
	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
