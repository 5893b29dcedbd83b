package apperr

// Friendly message tables. Raw provider strings must never reach the UI; an
// unknown code falls back to the generic "try again" message.

var codeMessages = map[Code]string{
	AuthError:       "There was a problem signing you in.",
	StorageError:    "We couldn't reach your family's data. Please try again.",
	NetworkError:    "You appear to be offline. Check your connection.",
	TimeoutError:    "That took too long. Please try again.",
	ValidationError: "Some of the information entered isn't valid.",
	PermissionError: "You don't have permission to do that.",
	BusinessError:   "That action isn't allowed right now.",
	RetryableError:  "A temporary problem occurred. Please try again.",
	OfflineError:    "You're offline. We'll retry once you're back online.",
	UnknownError:    "Something went wrong. Please try again.",
}

// authMessages refines AuthError per provider subcode.
var authMessages = map[string]string{
	"auth/user-not-found":       "No account found for that email.",
	"auth/wrong-password":       "That password is incorrect.",
	"auth/invalid-email":        "That email address isn't valid.",
	"auth/email-already-in-use": "An account already exists for that email.",
	"auth/weak-password":        "Please choose a stronger password.",
	"auth/too-many-requests":    "Too many attempts. Please wait and try again.",
	"auth/network-request-failed": "You appear to be offline. Check your " +
		"connection.",
}

func friendlyMessage(code Code, providerCode string) string {
	if code == AuthError {
		if m, ok := authMessages[providerCode]; ok {
			return m
		}
	}
	if m, ok := codeMessages[code]; ok {
		return m
	}
	return codeMessages[UnknownError]
}
