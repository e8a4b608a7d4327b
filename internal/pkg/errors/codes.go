package errors

// Категории ошибок
const (
	KindConfiguration     = "CONFIGURATION"
	KindDataIntegrity     = "DATA_INTEGRITY"
	KindUnreachableEntity = "UNREACHABLE_ENTITY"
	KindSolverUnavailable = "SOLVER_UNAVAILABLE"
	KindSolverTimeout     = "SOLVER_TIMEOUT"
	KindInfrastructure    = "INFRASTRUCTURE"

	CodeInternal = "INTERNAL_ERROR"
)

// Категории как sentinel-значения для errors.Is
var (
	ErrConfiguration = New(
		KindConfiguration,
		KindConfiguration,
		"Invalid configuration",
		true,
	)

	ErrDataIntegrity = New(
		KindDataIntegrity,
		KindDataIntegrity,
		"Data integrity violation",
		true,
	)

	ErrUnreachableEntity = New(
		KindUnreachableEntity,
		KindUnreachableEntity,
		"Entity has no resolvable network node",
		false,
	)

	ErrSolverUnavailable = New(
		KindSolverUnavailable,
		KindSolverUnavailable,
		"Exact solver is unavailable",
		false,
	)

	ErrSolverTimeout = New(
		KindSolverTimeout,
		KindSolverTimeout,
		"Exact solver exceeded its time budget",
		false,
	)
)

// Конкретные ошибки конфигурации
var (
	ErrInvalidK = New(
		"INVALID_K",
		KindConfiguration,
		"Facility budget K must be a positive integer",
		true,
	)

	ErrNegativeWeight = New(
		"NEGATIVE_WEIGHT",
		KindConfiguration,
		"Demand weights must be finite and non-negative",
		true,
	)

	ErrInvalidEquityThreshold = New(
		"INVALID_EQUITY_THRESHOLD",
		KindConfiguration,
		"Equity threshold must be within [0, 1]",
		true,
	)

	ErrEquityUnsupported = New(
		"EQUITY_UNSUPPORTED",
		KindConfiguration,
		"Equity constraint is not supported by the greedy heuristic",
		true,
	)

	ErrInvalidTimeBudget = New(
		"INVALID_TIME_BUDGET",
		KindConfiguration,
		"Time budget must be a non-negative number of minutes",
		true,
	)

	ErrInvalidTravelMode = New(
		"INVALID_TRAVEL_MODE",
		KindConfiguration,
		"Unknown travel mode",
		true,
	)

	ErrInvalidStrategy = New(
		"INVALID_STRATEGY",
		KindConfiguration,
		"Unknown solver strategy",
		true,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		KindConfiguration,
		"Invalid request parameters",
		true,
	)
)

// Ошибки целостности данных
var (
	ErrEmptyNetwork = New(
		"EMPTY_NETWORK",
		KindDataIntegrity,
		"Network has no nodes",
		true,
	)

	ErrInvalidEdge = New(
		"INVALID_EDGE",
		KindDataIntegrity,
		"Edge references an unknown node or has an invalid travel time",
		true,
	)

	ErrInvalidRelation = New(
		"INVALID_RELATION",
		KindDataIntegrity,
		"Coverage relation references an unknown index",
		true,
	)

	ErrMalformedInput = New(
		"MALFORMED_INPUT",
		KindDataIntegrity,
		"Input document is malformed",
		true,
	)
)

// Ошибки инфраструктуры
var (
	ErrCoverageNotFound = New(
		"COVERAGE_NOT_FOUND",
		KindInfrastructure,
		"Coverage relation not found",
		true,
	)

	ErrCoverageBuildInProgress = New(
		"COVERAGE_BUILD_IN_PROGRESS",
		KindInfrastructure,
		"Coverage relation is being built by another process",
		false,
	)

	ErrNoLocationSource = New(
		"NO_LOCATION_SOURCE",
		KindConfiguration,
		"Coverage relation is missing and no location source is configured",
		true,
	)

	ErrScenarioRunNotFound = New(
		"SCENARIO_RUN_NOT_FOUND",
		KindInfrastructure,
		"Scenario run not found",
		true,
	)

	ErrDatabaseError = New(
		"DATABASE_ERROR",
		KindInfrastructure,
		"Database operation failed",
		true,
	)

	ErrCacheError = New(
		"CACHE_ERROR",
		KindInfrastructure,
		"Cache operation failed",
		false,
	)

	ErrNotReady = New(
		"NOT_READY",
		KindInfrastructure,
		"Dependency is not ready",
		false,
	)

	ErrInternal = New(
		"INTERNAL_ERROR",
		"",
		"Internal error",
		true,
	)
)
