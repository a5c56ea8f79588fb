package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Arbitrage-specific error codes
const (
	// Triangle configuration and pricing
	CodeInvalidTriangle Code = "INVALID_TRIANGLE"
	CodeMissingPrice    Code = "MISSING_PRICE"
	CodeInvalidPrice    Code = "INVALID_PRICE"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Exchange (Binance) errors
	CodeExchangeAPIError         Code = "EXCHANGE_API_ERROR"
	CodeExchangeRateLimited      Code = "EXCHANGE_RATE_LIMITED"
	CodeExchangeUnavailable      Code = "EXCHANGE_UNAVAILABLE"
	CodeExchangeAuthFailed       Code = "EXCHANGE_UNAUTHORIZED"
	CodeRetriesExhausted         Code = "EXCHANGE_RETRIES_EXHAUSTED"
	CodeOrderRejected            Code = "ORDER_REJECTED"
	CodeMalformedOrderResponse   Code = "MALFORMED_ORDER_RESPONSE"
	CodeSymbolNotFound           Code = "SYMBOL_NOT_FOUND"
	CodeOrderbookFetchFailed     Code = "ORDERBOOK_FETCH_FAILED"
	CodeInvalidOrderbook         Code = "INVALID_ORDERBOOK"

	// Trading errors
	CodeInsufficientLiquidity Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize      Code = "INVALID_TRADE_SIZE"
	CodeLegTimeout            Code = "LEG_TIMEOUT"
	CodeTriangleTimeout       Code = "TRIANGLE_TIMEOUT"
	CodeFillRatioTooLow       Code = "FILL_RATIO_TOO_LOW"

	// Risk state
	CodeRiskStateLoadFailed Code = "RISK_STATE_LOAD_FAILED"
	CodeRiskStateSaveFailed Code = "RISK_STATE_SAVE_FAILED"

	// History storage
	CodeHistoryStoreError Code = "HISTORY_STORE_ERROR"
	CodePriceCacheError   Code = "PRICE_CACHE_ERROR"

	// Notifications
	CodeNotificationFailed Code = "NOTIFICATION_FAILED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
