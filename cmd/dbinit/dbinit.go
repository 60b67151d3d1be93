package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"

	"github.com/go-sql-driver/mysql"
)

var (
	host        = flag.String("host", "localhost", "host[:port]")
	adminUser   = flag.String("admin_user", "root", "Admin user")
	adminPasswd = flag.String("admin_password", "", "Admin password")
	dbUser      = flag.String("db_user", "user", "Database user")
	dbPasswd    = flag.String("db_password", "passwd", "Database user password")
	dbName      = flag.String("db_name", "cfsign", "Database name")
)

// setupStatements creates the database and an account for cfsignd. The
// issued_urls table is created by cfsignd's migrations on startup.
func setupStatements(db, user, passwd string) []string {
	return []string{
		"CREATE DATABASE IF NOT EXISTS `" + db + "` DEFAULT CHARACTER SET = 'utf8mb4' DEFAULT COLLATE 'utf8mb4_general_ci';",
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s';", user, passwd),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%';", db, user),
	}
}

func addr(h string) string {
	if _, _, err := net.SplitHostPort(h); err != nil {
		return net.JoinHostPort(h, "3306")
	}
	return h
}

func main() {
	flag.Parse()
	conn := &mysql.Config{
		User:                 *adminUser,
		Passwd:               *adminPasswd,
		Net:                  "tcp",
		Addr:                 addr(*host),
		AllowNativePasswords: true,
	}
	db, err := sql.Open("mysql", conn.FormatDSN())
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	for _, stmt := range setupStatements(*dbName, *dbUser, *dbPasswd) {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Error running setup: %v", err)
		}
	}
	log.Printf("Database %s ready for user %s", *dbName, *dbUser)
}
