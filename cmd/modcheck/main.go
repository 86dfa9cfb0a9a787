// modcheck runs Pocket Market moderation checks from the command line.
//
// Usage:
//
//	# Check a listing with the built-in blocklists
//	modcheck listing --title "Road bike" --description "Barely used"
//
//	# Check a chat message through a running moderator over NATS
//	modcheck message --remote --text "pay by wire transfer"
//
//	# Show the newest flags recorded in the audit log
//	modcheck flags --user u42 --limit 10
package main

func main() {
	Execute()
}
