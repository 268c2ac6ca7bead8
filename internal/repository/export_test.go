package repository

// SetupRepoDB は外部テストパッケージからテスト用データベースを使うための公開名。
var SetupRepoDB = setupRepoDB
