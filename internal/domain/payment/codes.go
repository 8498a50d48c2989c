package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidResponseCode = errors.New("payment: invalid response code")

// ResponseCode is the numeric Ds_Response value reported by the gateway.
type ResponseCode int

// ParseResponseCode accepts the zero-padded form the gateway sends, e.g. "0184".
func ParseResponseCode(raw string) (ResponseCode, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrInvalidResponseCode
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResponseCode, raw)
	}
	return ResponseCode(n), nil
}

// Authorized reports whether the payment went through. Codes 0000-0099 are approvals.
func (c ResponseCode) Authorized() bool { return c >= 0 && c < 100 }

func (c ResponseCode) String() string { return fmt.Sprintf("%04d", int(c)) }

// Decline returns the decline kind for c. The bool is false for approvals and
// for codes outside the known set.
func (c ResponseCode) Decline() (DeclineKind, bool) {
	if c.Authorized() {
		return 0, false
	}
	k := DeclineKind(c)
	return k, k.known()
}

// Description is the human-readable explanation stored on the order.
func (c ResponseCode) Description() string {
	if k, ok := c.Decline(); ok {
		return k.Description()
	}
	return "Error desconocido: " + c.String()
}

// DeclineKind is the closed set of refusal codes the shop knows how to explain.
type DeclineKind int

const (
	DeclineInvalidCard          DeclineKind = 101
	DeclineRestrictedCard       DeclineKind = 102
	DeclineExpiredCard          DeclineKind = 180
	DeclineBlacklistedCard      DeclineKind = 181
	DeclineCardDenied           DeclineKind = 184
	DeclineAccountInactive      DeclineKind = 185
	DeclineAuthenticationFailed DeclineKind = 188
	DeclineUnspecified          DeclineKind = 190
	DeclineWrongExpiry          DeclineKind = 191
	DeclineFraudAttempt         DeclineKind = 192
	DeclineGeneric              DeclineKind = 196
	DeclineCardException        DeclineKind = 202
	DeclineMerchantUnauthorized DeclineKind = 904
	DeclineSystemError          DeclineKind = 909
	DeclineIssuerUnavailable    DeclineKind = 912
	DeclineDuplicate            DeclineKind = 913
	DeclineSessionExpired       DeclineKind = 944
	DeclineRefundNotAllowed     DeclineKind = 950
	DeclineIssuerUnavailableAlt DeclineKind = 9912
	DeclineConfirmationError    DeclineKind = 9913
	DeclineConfirmationKO       DeclineKind = 9914
	DeclineApplicationBusy      DeclineKind = 9915
	DeclineDeferredCancel       DeclineKind = 9928
	DeclineDeferredCancelAlt    DeclineKind = 9929
	DeclineOtherInProgress      DeclineKind = 9997
	DeclineAuthenticating       DeclineKind = 9998
	DeclineRedirectedToIssuer   DeclineKind = 9999
)

// DeclineKinds lists every known decline kind.
var DeclineKinds = []DeclineKind{
	DeclineInvalidCard, DeclineRestrictedCard, DeclineExpiredCard, DeclineBlacklistedCard,
	DeclineCardDenied, DeclineAccountInactive, DeclineAuthenticationFailed, DeclineUnspecified,
	DeclineWrongExpiry, DeclineFraudAttempt, DeclineGeneric, DeclineCardException,
	DeclineMerchantUnauthorized, DeclineSystemError, DeclineIssuerUnavailable, DeclineDuplicate,
	DeclineSessionExpired, DeclineRefundNotAllowed, DeclineIssuerUnavailableAlt,
	DeclineConfirmationError, DeclineConfirmationKO, DeclineApplicationBusy,
	DeclineDeferredCancel, DeclineDeferredCancelAlt, DeclineOtherInProgress,
	DeclineAuthenticating, DeclineRedirectedToIssuer,
}

func (k DeclineKind) Code() string { return fmt.Sprintf("%04d", int(k)) }

func (k DeclineKind) known() bool { return k.Description() != "" }

func (k DeclineKind) Description() string {
	switch k {
	case DeclineInvalidCard:
		return "Tarjeta inválida"
	case DeclineRestrictedCard:
		return "Tarjeta con restricciones"
	case DeclineExpiredCard:
		return "Tarjeta caducada"
	case DeclineBlacklistedCard:
		return "Tarjeta en lista negra"
	case DeclineCardDenied:
		return "Tarjeta denegada"
	case DeclineAccountInactive:
		return "Cuenta no operativa"
	case DeclineAuthenticationFailed:
		return "Error en la autenticación"
	case DeclineUnspecified:
		return "Denegación sin especificar motivo"
	case DeclineWrongExpiry:
		return "Fecha de caducidad errónea"
	case DeclineFraudAttempt:
		return "Intento de fraude"
	case DeclineGeneric:
		return "Error genérico"
	case DeclineCardException:
		return "Tarjeta en excepción"
	case DeclineMerchantUnauthorized:
		return "Comercio no autorizado"
	case DeclineSystemError:
		return "Error de sistema"
	case DeclineIssuerUnavailable, DeclineIssuerUnavailableAlt:
		return "Emisor no disponible"
	case DeclineDuplicate:
		return "Transacción duplicada"
	case DeclineSessionExpired:
		return "Sesión CADUCADA"
	case DeclineRefundNotAllowed:
		return "Operación de devolución no permitida"
	case DeclineConfirmationError:
		return "Error en la confirmación"
	case DeclineConfirmationKO:
		return `Confirmación "KO"`
	case DeclineApplicationBusy:
		return "Aplicación ocupada"
	case DeclineDeferredCancel, DeclineDeferredCancelAlt:
		return "Anulación de autorización en diferido"
	case DeclineOtherInProgress:
		return "Procesando otra transacción"
	case DeclineAuthenticating:
		return "Operación en proceso de autenticación"
	case DeclineRedirectedToIssuer:
		return "Operación que ha sido redirigida al emisor"
	}
	return ""
}
