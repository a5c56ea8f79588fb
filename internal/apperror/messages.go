package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidFormat:      "Invalid data format",
	CodeConfigurationError: "Configuration error",
	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",

	// Triangle configuration and pricing
	CodeInvalidTriangle: "Triangle path does not decompose into its pairs",
	CodeMissingPrice:    "Price missing for pair",
	CodeInvalidPrice:    "Price must be positive",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Exchange (Binance) errors
	CodeExchangeAPIError:         "Exchange API error",
	CodeExchangeRateLimited:      "Exchange rate limit exceeded",
	CodeExchangeUnavailable:      "Exchange temporarily unavailable",
	CodeExchangeAuthFailed:       "Exchange rejected credentials",
	CodeRetriesExhausted:         "Exchange request retries exhausted",
	CodeOrderRejected:            "Order rejected by exchange",
	CodeMalformedOrderResponse:   "Malformed order response",
	CodeSymbolNotFound:           "Symbol not listed on exchange",
	CodeOrderbookFetchFailed:     "Failed to fetch orderbook",
	CodeInvalidOrderbook:         "Invalid orderbook data",

	// Trading errors
	CodeInsufficientLiquidity: "Insufficient liquidity for trade size",
	CodeInvalidTradeSize:      "Invalid trade size",
	CodeLegTimeout:            "Order leg timed out",
	CodeTriangleTimeout:       "Triangle execution budget exhausted",
	CodeFillRatioTooLow:       "Order fill ratio below minimum",

	// Risk state
	CodeRiskStateLoadFailed: "Failed to load risk state",
	CodeRiskStateSaveFailed: "Failed to save risk state",

	// History storage
	CodeHistoryStoreError: "Trade history store error",
	CodePriceCacheError:   "Price cache error",

	// Notifications
	CodeNotificationFailed: "Failed to deliver notification",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
