package protocol

import "fmt"

// ResultCode represents a directory operation result code as defined in
// RFC 4511 Section 4.1.9.
type ResultCode int

// Result codes per RFC 4511 Section 4.1.9. Only the codes a client
// runtime encounters are named; unknown codes still render via String.
const (
	ResultSuccess                 ResultCode = 0
	ResultOperationsError         ResultCode = 1
	ResultProtocolError           ResultCode = 2
	ResultTimeLimitExceeded       ResultCode = 3
	ResultSizeLimitExceeded       ResultCode = 4
	ResultAuthMethodNotSupported  ResultCode = 7
	ResultStrongerAuthRequired    ResultCode = 8
	ResultReferral                ResultCode = 10
	ResultAdminLimitExceeded      ResultCode = 11
	ResultUnavailableCriticalExt  ResultCode = 12
	ResultConfidentialityRequired ResultCode = 13
	ResultSaslBindInProgress      ResultCode = 14
	ResultNoSuchObject            ResultCode = 32
	ResultInvalidDNSyntax         ResultCode = 34
	ResultInappropriateAuth       ResultCode = 48
	ResultInvalidCredentials      ResultCode = 49
	ResultInsufficientAccess      ResultCode = 50
	ResultBusy                    ResultCode = 51
	ResultUnavailable             ResultCode = 52
	ResultUnwillingToPerform      ResultCode = 53
	ResultOther                   ResultCode = 80
)

// String renders a human-readable name for the result code.
func (rc ResultCode) String() string {
	switch rc {
	case ResultSuccess:
		return "success"
	case ResultOperationsError:
		return "operations error"
	case ResultProtocolError:
		return "protocol error"
	case ResultTimeLimitExceeded:
		return "time limit exceeded"
	case ResultSizeLimitExceeded:
		return "size limit exceeded"
	case ResultAuthMethodNotSupported:
		return "auth method not supported"
	case ResultStrongerAuthRequired:
		return "stronger auth required"
	case ResultReferral:
		return "referral"
	case ResultAdminLimitExceeded:
		return "admin limit exceeded"
	case ResultUnavailableCriticalExt:
		return "unavailable critical extension"
	case ResultConfidentialityRequired:
		return "confidentiality required"
	case ResultSaslBindInProgress:
		return "SASL bind in progress"
	case ResultNoSuchObject:
		return "no such object"
	case ResultInvalidDNSyntax:
		return "invalid DN syntax"
	case ResultInappropriateAuth:
		return "inappropriate authentication"
	case ResultInvalidCredentials:
		return "invalid credentials"
	case ResultInsufficientAccess:
		return "insufficient access rights"
	case ResultBusy:
		return "busy"
	case ResultUnavailable:
		return "unavailable"
	case ResultUnwillingToPerform:
		return "unwilling to perform"
	case ResultOther:
		return "other"
	default:
		return fmt.Sprintf("result code %d", int(rc))
	}
}
