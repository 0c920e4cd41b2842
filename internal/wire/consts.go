package wire

// Operation codes exchanged on the wire. Every packet starts with one of
// these as a big-endian uint32.
const (
	OpConnect           = 1
	OpAccept            = 3
	OpReject            = 4
	OpResponse          = 9
	OpAttach            = 19
	OpCreate            = 20
	OpDetach            = 21
	OpTransaction       = 29
	OpCommit            = 30
	OpRollback          = 31
	OpOpenBlob          = 35
	OpGetSegment        = 36
	OpPutSegment        = 37
	OpCloseBlob         = 39
	OpInfoDatabase      = 40
	OpInfoTransaction   = 42
	OpBatchSegments     = 44
	OpCommitRetaining   = 50
	OpCreateBlob2       = 57
	OpAllocateStatement = 62
	OpExecute           = 63
	OpExecImmediate     = 64
	OpFetch             = 65
	OpFetchResponse     = 66
	OpFreeStatement     = 67
	OpPrepareStatement  = 68
	OpInfoSQL           = 70
	OpDummy             = 71
	OpExecute2          = 76
	OpSQLResponse       = 78
	OpDropDatabase      = 81
	OpServiceAttach     = 82
	OpServiceDetach     = 83
	OpServiceInfo       = 84
	OpServiceStart      = 85
	OpRollbackRetaining = 86
	OpCancel            = 91
	OpContAuth          = 92
	OpPing              = 93
	OpAcceptData        = 94
	OpCrypt             = 96
	OpCondAccept        = 98
)

// Connect handshake framing.
const (
	ConnectVersion3 = 3
	ArchGeneric     = 1

	// accept_type flags returned in op_accept and friends.
	PtypeLazySend = 5
	PtypeMask     = 0xFF
)

// CNCT tags carried in the op_connect user identification block.
const (
	CnctUserVerification = 6
	CnctSpecificData     = 7
	CnctPluginName       = 8
	CnctLogin            = 9
	CnctPluginList       = 10
	CnctClientCrypt      = 11
)

// DPB tags (database parameter buffer).
const (
	DPBVersion1         = 1
	DPBPageSize         = 4
	DPBNumBuffers       = 5
	DPBForceWrite       = 24
	DPBUserName         = 28
	DPBPassword         = 29
	DPBPasswordEnc      = 30
	DPBLcCtype          = 48
	DPBOverwrite        = 54
	DPBConnectTimeout   = 57
	DPBDummyPacketival  = 58
	DPBSQLRoleName      = 60
	DPBSQLDialect       = 63
	DPBSetDBCharset     = 68
	DPBUTF8Filename     = 77
	DPBSpecificAuthData = 84
	DPBAuthPluginName   = 86
	DPBAuthPluginList   = 87
	DPBClientVersion    = 89
	DPBProcessName      = 90
	DPBSessionTimeZone  = 91
)

// TPB tags (transaction parameter buffer).
const (
	TPBVersion3      = 3
	TPBConsistency   = 1
	TPBConcurrency   = 2
	TPBShared        = 3
	TPBProtected     = 4
	TPBExclusive     = 5
	TPBWait          = 6
	TPBNowait        = 7
	TPBRead          = 8
	TPBWrite         = 9
	TPBLockRead      = 10
	TPBLockWrite     = 11
	TPBVerbTime      = 12
	TPBCommitTime    = 13
	TPBIgnoreLimbo   = 14
	TPBReadCommitted = 15
	TPBAutocommit    = 16
	TPBRecVersion    = 17
	TPBNoRecVersion  = 18
	TPBRestartReqs   = 19
	TPBNoAutoUndo    = 20
	TPBLockTimeout   = 21
)

// Status vector argument codes.
const (
	ArgEnd         = 0
	ArgGDS         = 1
	ArgString      = 2
	ArgCstring     = 3
	ArgNumber      = 4
	ArgInterpreted = 5
	ArgSQLState    = 19
	ArgWarning     = 18
)

// isc_info_sql items used when describing prepared statements.
const (
	InfoSQLStmtType     = 21
	InfoSQLGetPlan      = 22
	InfoSQLRecords      = 23
	InfoSQLSelect       = 4
	InfoSQLBind         = 5
	InfoSQLNumVariables = 6
	InfoSQLDescribeVars = 7
	InfoSQLDescribeEnd  = 8
	InfoSQLSQLDASeq     = 9
	InfoSQLMessageSeq   = 10
	InfoSQLType         = 11
	InfoSQLSubType      = 12
	InfoSQLScale        = 13
	InfoSQLLength       = 14
	InfoSQLNullInd      = 15
	InfoSQLField        = 16
	InfoSQLRelation     = 17
	InfoSQLOwner        = 18
	InfoSQLAlias        = 19
	InfoSQLSQLDAStart   = 20

	InfoEnd       = 1
	InfoTruncated = 2
	InfoError     = 3
)

// isc_info record-count items found inside an isc_info_sql_records reply.
const (
	InfoReqSelectCount = 13
	InfoReqInsertCount = 14
	InfoReqUpdateCount = 15
	InfoReqDeleteCount = 16
)

// Database info items.
const (
	InfoOdsVersion      = 32
	InfoFirebirdVersion = 103
)

// SQL data types as they appear in XSQLVAR descriptors. The low bit flags
// nullability and is masked off before comparison.
const (
	SQLTypeText        = 452
	SQLTypeVarying     = 448
	SQLTypeShort       = 500
	SQLTypeLong        = 496
	SQLTypeFloat       = 482
	SQLTypeDouble      = 480
	SQLTypeDFloat      = 530
	SQLTypeTimestamp   = 510
	SQLTypeBlob        = 520
	SQLTypeArray       = 540
	SQLTypeQuad        = 550
	SQLTypeTimeTZ      = 32756
	SQLTypeTimestampTZ = 32754
	SQLTypeTime        = 560
	SQLTypeDate        = 570
	SQLTypeInt64       = 580
	SQLTypeInt128      = 32752
	SQLTypeDec64       = 32760
	SQLTypeDec128      = 32762
	SQLTypeDecFixed    = 32758
	SQLTypeBoolean     = 32764
	SQLTypeNull        = 32766
)

// Statement types reported by isc_info_sql_stmt_type.
const (
	StmtSelect        = 1
	StmtInsert        = 2
	StmtUpdate        = 3
	StmtDelete        = 4
	StmtDDL           = 5
	StmtGetSegment    = 6
	StmtPutSegment    = 7
	StmtExecProcedure = 8
	StmtStartTrans    = 9
	StmtCommit        = 10
	StmtRollback      = 11
	StmtSelectForUpd  = 12
	StmtSetGenerator  = 13
	StmtSavepoint     = 14
)

// op_free_statement modes.
const (
	DSQLClose = 1
	DSQLDrop  = 2
)

// Blob segment status codes returned through the op_get_segment handle slot.
const (
	SegmentMore = 1
	SegmentEOF  = 2
)

// op_cancel operation kinds.
const (
	CancelDisable = 1
	CancelEnable  = 2
	CancelRaise   = 3
	CancelAbort   = 4
)

// isc_info_tra items.
const (
	InfoTraID = 4
)
