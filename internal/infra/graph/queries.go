package graph

import "strings"

const (
	loadCustomersCypher = `LOAD CSV WITH HEADERS FROM $path AS row
WITH toInteger(row.CUSTOMER_ID) AS CUSTOMER_ID,
     toFloat(row.x_customer_id) AS x_customer_id,
     toFloat(row.y_customer_id) AS y_customer_id,
     toFloat(row.mean_amount) AS mean_amount,
     toFloat(row.std_amount) AS std_amount,
     toFloat(row.mean_nb_tx_per_day) AS mean_nb_tx_per_day
WHERE CUSTOMER_ID IS NOT NULL
MERGE (c:Customer { CUSTOMER_ID: CUSTOMER_ID,
                    x_customer_id: x_customer_id,
                    y_customer_id: y_customer_id,
                    mean_amount: mean_amount,
                    std_amount: std_amount,
                    mean_nb_tx_per_day: mean_nb_tx_per_day })`

	loadTerminalsCypher = `LOAD CSV WITH HEADERS FROM $path AS row
WITH toInteger(row.TERMINAL_ID) AS TERMINAL_ID,
     toFloat(row.x_terminal_id) AS x_terminal_id,
     toFloat(row.y_terminal_id) AS y_terminal_id
WHERE TERMINAL_ID IS NOT NULL
MERGE (t:Terminal { TERMINAL_ID: TERMINAL_ID,
                    x_terminal_id: x_terminal_id,
                    y_terminal_id: y_terminal_id })`

	loadTransactionsCypher = `UNWIND $batch AS row
CALL {
    WITH row
    WITH toInteger(row.TRANSACTION_ID) AS TRANSACTION_ID,
         datetime(replace(row.TX_DATETIME, ' ', 'T')) AS TX_DATETIME,
         toFloat(row.TX_AMOUNT) AS TX_AMOUNT,
         toInteger(row.TX_FRAUD) AS TX_FRAUD,
         toInteger(row.TX_FRAUD_SCENARIO) AS TX_FRAUD_SCENARIO,
         toInteger(row.CUSTOMER_ID) AS CUSTOMER_ID,
         toInteger(row.TERMINAL_ID) AS TERMINAL_ID
    WHERE TRANSACTION_ID IS NOT NULL
    MATCH (terminal:Terminal { TERMINAL_ID: TERMINAL_ID }),
          (customer:Customer { CUSTOMER_ID: CUSTOMER_ID })
    MERGE (terminal)-[:EXECUTE]->
          (t:Transaction { TRANSACTION_ID: TRANSACTION_ID,
                           TX_DATETIME: TX_DATETIME,
                           TX_AMOUNT: TX_AMOUNT,
                           TX_FRAUD: TX_FRAUD,
                           TX_FRAUD_SCENARIO: TX_FRAUD_SCENARIO })
          <-[:MAKE]-(customer)
} IN TRANSACTIONS`
)

// Index is an identifier index created after a node label is loaded.
type Index struct {
	Name     string
	Label    string
	Property string
}

// Cypher returns the idempotent CREATE INDEX statement.
func (i Index) Cypher() string {
	return "CREATE INDEX " + i.Name + " IF NOT EXISTS FOR (n:" + i.Label + ") ON (n." + i.Property + ")"
}

var (
	CustomerIndex    = Index{Name: "customer_index", Label: "Customer", Property: "CUSTOMER_ID"}
	TerminalIndex    = Index{Name: "terminal_index", Label: "Terminal", Property: "TERMINAL_ID"}
	TransactionIndex = Index{Name: "transaction_index", Label: "Transaction", Property: "TRANSACTION_ID"}
)

// Query is one of the fixed analytical workloads. Setup statements run
// first; when Output is set the records are saved as <Name>.csv.
type Query struct {
	Name   string
	Setup  []string
	Cypher string
	Output bool
}

// Queries lists the workloads in execution order. Q4.3 derives
// BUYING_FRIEND from the products assigned by Q4.2 and Q5 traverses it.
var Queries = []Query{
	{
		Name: "Q1",
		Cypher: `MATCH (c:Customer)-[:MAKE]->(t:Transaction)
WHERE t.TX_DATETIME >= datetime({ year: datetime().year - 1, month: CASE WHEN datetime().month < 7 THEN 1 ELSE 7 END, day: 1 })
  AND t.TX_DATETIME < datetime({ year: datetime().year, month: CASE WHEN datetime().month < 7 THEN 7 ELSE 1 END, day: 1 })
WITH c, t, datetime.truncate('week', t.TX_DATETIME) AS week
RETURN c.CUSTOMER_ID AS customer, sum(t.TX_AMOUNT) AS amount, week
ORDER BY customer, week`,
		Output: true,
	},
	{
		Name: "Q2",
		Cypher: `MATCH (term:Terminal)-[:EXECUTE]->(trans:Transaction)
WITH term, trans, trans.TX_DATETIME.year AS year,
     CASE WHEN trans.TX_DATETIME.month < 7 THEN 'first' ELSE 'second' END AS semester
WITH term.TERMINAL_ID AS terminal, year, semester, avg(trans.TX_AMOUNT) AS avg_amount
MATCH (t:Terminal { TERMINAL_ID: terminal })-[:EXECUTE]->(tr:Transaction)
WHERE ((tr.TX_DATETIME.month < 7 AND year - 1 = tr.TX_DATETIME.year AND semester = 'second') OR
       (tr.TX_DATETIME.month >= 7 AND year = tr.TX_DATETIME.year AND semester = 'first'))
  AND (tr.TX_AMOUNT > 1.1 * avg_amount OR tr.TX_AMOUNT < 0.9 * avg_amount)
RETURN terminal, collect(tr.TRANSACTION_ID) AS transactions
ORDER BY terminal`,
		Output: true,
	},
	{
		Name: "Q3",
		Setup: []string{
			`MATCH (terminal:Terminal)-[:EXECUTE]->(:Transaction)<-[:MAKE]-(customer:Customer)
MERGE (customer)-[:USE]->(terminal)`,
		},
		Cypher: `MATCH (u1:Customer)-[:USE*4]-(u2:Customer)
WHERE id(u1) < id(u2)
RETURN DISTINCT u1.CUSTOMER_ID AS Customer1, u2.CUSTOMER_ID AS Customer2`,
		Output: true,
	},
	{
		Name: "Q4.1",
		Cypher: `MATCH (t:Transaction)
SET t.period = CASE
    WHEN t.TX_DATETIME.hour < 6 THEN 'night'
    WHEN t.TX_DATETIME.hour < 12 THEN 'morning'
    WHEN t.TX_DATETIME.hour < 18 THEN 'afternoon'
    ELSE 'evening'
END`,
	},
	{
		Name: "Q4.2",
		Cypher: `MATCH (t:Transaction)
SET t.product = CASE toInteger(rand() * 5)
    WHEN 1 THEN 'high-tech'
    WHEN 2 THEN 'food'
    WHEN 3 THEN 'clothing'
    WHEN 4 THEN 'consumable'
    ELSE 'other'
END`,
	},
	{
		Name: "Q4.3",
		Cypher: `MATCH (c:Customer)-[:MAKE]->(tr:Transaction)<-[:EXECUTE]-(t:Terminal)
WITH c AS customer, t.TERMINAL_ID AS terminal, tr.product AS product, count(tr) AS numb_tr
WHERE numb_tr > 3
WITH terminal, product, collect(customer) AS customers
WITH DISTINCT customers, terminal
UNWIND apoc.coll.combinations(customers, 2) AS pair
WITH pair[0] AS first, pair[1] AS second
MERGE (first)-[:BUYING_FRIEND]-(second)`,
	},
	{
		Name: "Q5",
		Cypher: `MATCH path = (c:Customer)-[:BUYING_FRIEND*4]-(friend:Customer)
WHERE c <> friend
RETURN c.CUSTOMER_ID AS CustomerID, friend.CUSTOMER_ID AS FriendID, length(path) AS Degree
ORDER BY CustomerID, FriendID`,
		Output: true,
	},
}

// LookupQuery finds a query by name, case-insensitively.
func LookupQuery(name string) (Query, bool) {
	for _, q := range Queries {
		if strings.EqualFold(q.Name, name) {
			return q, true
		}
	}
	return Query{}, false
}
