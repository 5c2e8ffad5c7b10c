// Package groups manages access groups and user membership.
//
// Groups are the unit permissions are granted to. A USER sees a folder or
// file only when one of their groups holds a grant on it, so the membership
// lookup GroupIDsForUser is on the read path of every filtered request.
package groups
