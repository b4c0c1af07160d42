package response

import "net/http"

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrPermissionDenied   ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Question pipeline: security ───────────────────────────────────
	ErrSessionSecurityViolation ErrCode = "SESSION_SECURITY_VIOLATION"
	ErrUnauthorizedAccess       ErrCode = "UNAUTHORIZED_ACCESS"

	// ─── Question pipeline: references & data ──────────────────────────
	ErrTaxonomyReferenceNotFound    ErrCode = "TAXONOMY_REFERENCE_NOT_FOUND"
	ErrMissingRequiredField         ErrCode = "MISSING_REQUIRED_FIELD"
	ErrTypeDataMismatch             ErrCode = "TYPE_DATA_MISMATCH"
	ErrMCQInsufficientOptions       ErrCode = "MCQ_INSUFFICIENT_OPTIONS"
	ErrMCQTooManyOptions            ErrCode = "MCQ_TOO_MANY_OPTIONS"
	ErrMCQMultipleCorrectNotAllowed ErrCode = "MCQ_MULTIPLE_CORRECT_NOT_ALLOWED"
	ErrMCQInvalidTimeLimit          ErrCode = "MCQ_INVALID_TIME_LIMIT"
	ErrMCQTimeLimitTooLong          ErrCode = "MCQ_TIME_LIMIT_TOO_LONG"

	// ─── Question pipeline: infrastructure ──────────────────────────────
	ErrRepository              ErrCode = "REPOSITORY_ERROR"
	ErrOwnershipValidation     ErrCode = "OWNERSHIP_VALIDATION_ERROR"
	ErrTaxonomyValidation      ErrCode = "TAXONOMY_VALIDATION_ERROR"
	ErrDataIntegrityValidation ErrCode = "DATA_INTEGRITY_VALIDATION_ERROR"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email atau kata sandi salah."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrPermissionDenied:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Question pipeline: security ───────────────────────────────────
	case ErrSessionSecurityViolation:
		return "Sesi Anda tidak lolos pemeriksaan keamanan."
	case ErrUnauthorizedAccess:
		return "Anda tidak memiliki akses ke bank soal ini."

	// ─── Question pipeline: references & data ──────────────────────────
	case ErrTaxonomyReferenceNotFound:
		return "Referensi taksonomi tidak ditemukan."
	case ErrMissingRequiredField:
		return "Kolom wajib belum diisi."
	case ErrTypeDataMismatch:
		return "Data soal tidak sesuai dengan tipe soal."
	case ErrMCQInsufficientOptions:
		return "Soal pilihan ganda membutuhkan minimal 2 opsi."
	case ErrMCQTooManyOptions:
		return "Soal pilihan ganda maksimal memiliki 10 opsi."
	case ErrMCQMultipleCorrectNotAllowed:
		return "Soal ini hanya boleh memiliki satu jawaban benar."
	case ErrMCQInvalidTimeLimit:
		return "Batas waktu harus bernilai positif."
	case ErrMCQTimeLimitTooLong:
		return "Batas waktu maksimal 3600 detik."

	// ─── Question pipeline: infrastructure ──────────────────────────────
	case ErrRepository:
		return "Penyimpanan data sedang tidak tersedia. Silakan coba lagi."
	case ErrOwnershipValidation:
		return "Kepemilikan bank soal tidak dapat diverifikasi."
	case ErrTaxonomyValidation:
		return "Referensi taksonomi tidak dapat diverifikasi."
	case ErrDataIntegrityValidation:
		return "Integritas data soal tidak dapat diverifikasi."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}

// HTTPStatus maps an error code to the status the API responds with.
// Infrastructure failures map to 5xx so clients can tell them from denials.
func HTTPStatus(code ErrCode) int {
	switch code {
	case ErrInvalidCredentials, ErrSessionInvalidated, ErrTokenRequired, ErrTokenInvalid:
		return http.StatusUnauthorized
	case ErrRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrSessionSecurityViolation, ErrUnauthorizedAccess, ErrPermissionDenied:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTaxonomyReferenceNotFound:
		return http.StatusUnprocessableEntity
	case ErrValidation, ErrInvalidID, ErrInvalidPayload,
		ErrMissingRequiredField, ErrTypeDataMismatch,
		ErrMCQInsufficientOptions, ErrMCQTooManyOptions, ErrMCQMultipleCorrectNotAllowed,
		ErrMCQInvalidTimeLimit, ErrMCQTimeLimitTooLong:
		return http.StatusBadRequest
	case ErrRepository:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
