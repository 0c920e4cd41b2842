package fbwire

import "fmt"

// GDS codes the client itself reacts to.
const (
	gdsSQLError      = 335544436 // carries the sqlcode as an arg_number
	gdsLoginError    = 335544472
	gdsShutdownError = 335544528
)

// gdsMessages maps the GDS codes commonly seen by a client to their message
// templates. "@n" placeholders are substituted with status vector arguments.
// Codes outside the table still round-trip through ServerError.Codes; only
// the human-readable text degrades.
var gdsMessages = map[uint32]string{
	335544321: "arithmetic exception, numeric overflow, or string truncation\n",
	335544324: "invalid database handle (no active connection)\n",
	335544325: "bad parameters on attach or create database\n",
	335544326: "unrecognized database parameter block\n",
	335544332: "invalid transaction handle (expecting explicit transaction start)\n",
	335544334: "conversion error from string \"@1\"\n",
	335544336: "deadlock\n",
	335544344: "I/O error during \"@1\" operation for file \"@2\"\n",
	335544345: "lock conflict on no wait transaction\n",
	335544347: "validation error for column @1, value \"@2\"\n",
	335544349: "attempt to store duplicate value (visible to active transactions) in unique index \"@1\"\n",
	335544351: "unsuccessful metadata update\n",
	335544352: "no permission for @1 access to @2 @3\n",
	335544374: "attempt to fetch past the last record in a record stream\n",
	335544436: "SQL error code = @1\n",
	335544442: "database @1 shutdown in progress\n",
	335544466: "violation of FOREIGN KEY constraint \"@1\" on table \"@2\"\n",
	335544472: "Your user name and password are not defined. Ask your database administrator to set up a Firebird login.\n",
	335544506: "database @1 shutdown in progress\n",
	335544528: "database @1 shutdown\n",
	335544558: "Operation violates CHECK constraint @1 on view or table @2\n",
	335544569: "Dynamic SQL Error\n",
	335544570: "Invalid command\n",
	335544573: "Data type unknown\n",
	335544574: "Invalid cursor reference\n",
	335544576: "Table unknown\n",
	335544577: "Procedure unknown\n",
	335544578: "Column unknown\n",
	335544634: "Token unknown - line @1, column @2\n",
	335544665: "violation of PRIMARY or UNIQUE KEY constraint \"@1\" on table \"@2\"\n",
	335544721: "Unable to complete network request to host \"@1\".\n",
	335544726: "Error reading data from the connection.\n",
	335544727: "Error writing data to the connection.\n",
	335544792: "Access to databases on file servers is not supported.\n",
	335544849: "Malformed string\n",
	335544851: "Unexpected end of command - line @1, column @2\n",
	335545004: "Invalid database filename \"@1\"\n",
	335545026: "SQL role @1 does not exist\n",
	335545106: "Server misconfigured - contact administrator please\n",
	336003074: "Dynamic SQL Error-SQL error code = -104-Token unknown @1 @2\n",
	336003075: "Dynamic SQL Error-SQL error code = -104-Unexpected end of command @1 @2\n",
	337248267: "too many open handles to database\n",
}

func gdsMessage(code uint32) string {
	if msg, ok := gdsMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("unknown gds code %d\n", code)
}
